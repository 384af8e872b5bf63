// Package lddynamodb provides a DynamoDB-backed persistent data store.
//
// To use the DynamoDB data store with the data system:
//
//	store, err := lddynamodb.DataStore("my-table-name").CreatePersistentDataStore(loggers)
//	wrapper := datastore.NewPersistentDataStoreWrapper(store, cacheTTL, loggers)
//
// By default, the data store loads a basic AWS client configuration from the
// standard environment. This will only work if your AWS credentials and
// region are available from AWS environment variables and/or configuration
// files. If you want to set those programmatically or modify any other
// configuration settings, use the ClientOptions or Client methods of the
// lddynamodb.DataStoreBuilder returned by lddynamodb.DataStore(), for
// example:
//
//	lddynamodb.DataStore("my-table-name").Prefix("key-prefix")
//
// If you are also using DynamoDB for other purposes, the data store can
// coexist with other data as long as you are not using the same keys. By
// default, the keys used by the data store will always start with
// "launchdarkly:"; you can change this to another prefix if desired.
package lddynamodb
