// Package datasystem is the data layer of a feature flag evaluation client.
//
// It receives flag and segment definitions from an update source (streaming,
// polling, or test fixtures), maintains them in a queryable in-memory form,
// optionally mirrors them into a pluggable persistent store such as Redis,
// Consul, or DynamoDB, and serves consistent reads to an evaluation engine
// while tracking dependencies between items so that changes can be reported
// per affected flag.
//
// The central type is Store. An update source delivers data to it as
// ChangeSets (full data sets or deltas, positioned by a Selector cursor);
// readers obtain the current data through Store.GetActive. Status observers
// attach through Store.DataStoreStatusProvider, Store.DataSourceStatusProvider,
// and Store.FlagTracker.
package datasystem
