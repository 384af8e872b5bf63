package lddynamodb

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/launchdarkly/go-datasystem/subsystems"
)

// DataStore returns a configurable builder for a DynamoDB-backed persistent
// data store.
//
// The tableName parameter is required, and the table must already exist in
// DynamoDB with the correct schema: a partition key named "namespace" and a
// sort key named "key", both strings.
//
// Builder calls can be chained, for example:
//
//	lddynamodb.DataStore("my-table").Prefix("prefix")
//
// By default, the AWS client configuration is loaded from the standard
// environment (credentials, region, and so on). Use ClientOptions or Client
// to customize it.
func DataStore(tableName string) *DataStoreBuilder {
	return &DataStoreBuilder{
		table: tableName,
	}
}

// DataStoreBuilder is a builder for configuring the DynamoDB-based persistent
// data store. Obtain an instance of this type by calling DataStore().
type DataStoreBuilder struct {
	client        *dynamodb.Client
	table         string
	prefix        string
	clientOptions []func(*dynamodb.Options)
}

// Prefix specifies a prefix for namespacing the data store's keys. The
// default is no prefix.
func (b *DataStoreBuilder) Prefix(prefix string) *DataStoreBuilder {
	b.prefix = prefix
	return b
}

// ClientOptions adds DynamoDB client options, such as an endpoint resolver
// for a local DynamoDB instance. These are ignored if a pre-built client is
// provided with Client.
func (b *DataStoreBuilder) ClientOptions(options ...func(*dynamodb.Options)) *DataStoreBuilder {
	b.clientOptions = append(b.clientOptions, options...)
	return b
}

// Client specifies a pre-built DynamoDB client instance. If set, the builder
// does not load any AWS configuration itself.
func (b *DataStoreBuilder) Client(client *dynamodb.Client) *DataStoreBuilder {
	b.client = client
	return b
}

// CreatePersistentDataStore builds the store implementation object.
func (b *DataStoreBuilder) CreatePersistentDataStore(
	loggers ldlog.Loggers,
) (subsystems.PersistentDataStore, error) {
	return newDynamoDBDataStoreImpl(b, loggers)
}
