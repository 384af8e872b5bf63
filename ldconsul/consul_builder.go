package ldconsul

import (
	c "github.com/hashicorp/consul/api"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/launchdarkly/go-datasystem/subsystems"
)

const (
	// DefaultPrefix is a string that is prepended (along with a slash) to all
	// Consul keys used by the data store. You can change this value with the
	// Prefix() option.
	DefaultPrefix = "launchdarkly"
)

// DataStoreBuilder is a builder for configuring the Consul-based persistent
// data store. Obtain an instance of this type by calling DataStore().
//
// Builder calls can be chained, for example:
//
//	ldconsul.DataStore().Address("hostname:8500").Prefix("prefix")
type DataStoreBuilder struct {
	consulConfig c.Config
	prefix       string
}

// DataStore returns a configurable builder for a Consul-backed data store.
func DataStore() *DataStoreBuilder {
	return &DataStoreBuilder{
		prefix: DefaultPrefix,
	}
}

// Config specifies an entire configuration for the Consul driver. This
// overwrites any previous Consul settings that may have been specified.
func (b *DataStoreBuilder) Config(consulConfig c.Config) *DataStoreBuilder {
	b.consulConfig = consulConfig
	return b
}

// Address sets the address of the Consul server. If placed after Config(),
// this modifies the previously specified configuration.
func (b *DataStoreBuilder) Address(address string) *DataStoreBuilder {
	b.consulConfig.Address = address
	return b
}

// Prefix specifies a prefix for namespacing the data store's keys. The
// default value is DefaultPrefix.
func (b *DataStoreBuilder) Prefix(prefix string) *DataStoreBuilder {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	b.prefix = prefix
	return b
}

// CreatePersistentDataStore builds the store implementation object.
func (b *DataStoreBuilder) CreatePersistentDataStore(
	loggers ldlog.Loggers,
) (subsystems.PersistentDataStore, error) {
	return newConsulDataStoreImpl(b, loggers)
}
