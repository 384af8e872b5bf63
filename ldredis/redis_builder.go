package ldredis

import (
	"fmt"

	r "github.com/gomodule/redigo/redis"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/launchdarkly/go-datasystem/subsystems"
)

const (
	// DefaultURL is the default URL for connecting to Redis. You can specify
	// otherwise with the URL option.
	DefaultURL = "redis://localhost:6379"
	// DefaultPrefix is a string that is prepended (along with a colon) to all
	// Redis keys used by the data store. You can change this value with the
	// Prefix option.
	DefaultPrefix = "launchdarkly"
)

// DataStore returns a configurable builder for a Redis-backed persistent data
// store.
//
// Builder calls can be chained, for example:
//
//	ldredis.DataStore().URL("redis://hostname").Prefix("prefix")
//
// Pass the result to datasystem.NewPersistentDataStoreWrapper (via
// CreatePersistentDataStore) to use it with a Store.
func DataStore() *DataStoreBuilder {
	return &DataStoreBuilder{
		prefix: DefaultPrefix,
		url:    DefaultURL,
	}
}

// DataStoreBuilder is a builder for configuring the Redis-based persistent
// data store. Obtain an instance of this type by calling DataStore().
type DataStoreBuilder struct {
	prefix      string
	pool        *r.Pool
	url         string
	dialOptions []r.DialOption
}

// Prefix specifies a string that should be prepended to all Redis keys used
// by the data store. A colon will be added to this automatically. If this is
// unspecified or empty, DefaultPrefix will be used.
func (b *DataStoreBuilder) Prefix(prefix string) *DataStoreBuilder {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	b.prefix = prefix
	return b
}

// URL specifies the Redis host URL. If not specified, the default value is
// DefaultURL.
//
// Note that some Redis client features can also be specified as part of the
// URL: Redigo supports the redis:// syntax
// (https://www.iana.org/assignments/uri-schemes/prov/redis), which can include
// a password and a database number, as well as rediss://
// (https://www.iana.org/assignments/uri-schemes/prov/rediss), which enables
// TLS.
func (b *DataStoreBuilder) URL(url string) *DataStoreBuilder {
	if url == "" {
		url = DefaultURL
	}
	b.url = url
	return b
}

// HostAndPort is a shortcut for specifying the Redis host address as a
// hostname and port.
func (b *DataStoreBuilder) HostAndPort(host string, port int) *DataStoreBuilder {
	return b.URL(fmt.Sprintf("redis://%s:%d", host, port))
}

// Pool specifies that the data store should use a specific connection pool
// configuration. If not specified, it will create a default configuration
// (see package description). Specifying this option will cause any address
// specified with URL or HostAndPort to be ignored.
//
// If you only need to change basic connection options such as providing a
// password, it is simpler to use DialOptions.
func (b *DataStoreBuilder) Pool(pool *r.Pool) *DataStoreBuilder {
	b.pool = pool
	return b
}

// DialOptions specifies any of the advanced Redis connection options
// supported by Redigo, such as DialPassword.
//
//	ldredis.DataStore().DialOptions(redigo.DialPassword("verysecure123"))
//
// Note that some Redis client features can also be specified as part of the
// URL: see URL.
func (b *DataStoreBuilder) DialOptions(options ...r.DialOption) *DataStoreBuilder {
	b.dialOptions = options
	return b
}

// CreatePersistentDataStore builds the store implementation object.
func (b *DataStoreBuilder) CreatePersistentDataStore(
	loggers ldlog.Loggers,
) (subsystems.PersistentDataStore, error) {
	return newRedisDataStoreImpl(b, loggers), nil
}
