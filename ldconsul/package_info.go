// Package ldconsul provides a Consul-backed persistent data store.
//
// To use the Consul data store with the data system:
//
//	store, err := ldconsul.DataStore().CreatePersistentDataStore(loggers)
//	wrapper := datastore.NewPersistentDataStoreWrapper(store, cacheTTL, loggers)
//
// The default Consul configuration uses an address of localhost:8500. You may
// customize the configuration by using the methods of the
// ldconsul.DataStoreBuilder returned by ldconsul.DataStore(), for example:
//
//	ldconsul.DataStore().Address("myhost:8500").Prefix("prefix")
//
// If you are also using Consul for other purposes, the data store can coexist
// with other data as long as you are not using the same keys. By default, the
// keys used by the data store will always start with "launchdarkly/"; you can
// change this to another prefix if desired.
package ldconsul
