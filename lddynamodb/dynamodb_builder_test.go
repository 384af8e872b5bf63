package lddynamodb

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

func TestDataStoreBuilderTableNameIsRequired(t *testing.T) {
	_, err := DataStore("").CreatePersistentDataStore(ldlog.NewDisabledLoggers())
	assert.Error(t, err)
}

func TestDataStoreBuilderPrefix(t *testing.T) {
	b := DataStore("table").Prefix("p")
	assert.Equal(t, "p", b.prefix)
}

func TestDataStoreBuilderCreatesStoreWithClient(t *testing.T) {
	client := dynamodb.New(dynamodb.Options{Region: "us-east-1"})
	store, err := DataStore("table").Client(client).Prefix("p").
		CreatePersistentDataStore(ldlog.NewDisabledLoggers())
	require.NoError(t, err)
	defer store.Close()

	impl := store.(*dynamoDBDataStore)
	assert.Same(t, client, impl.client)
	assert.Equal(t, "table", impl.table)
	assert.Equal(t, "p", impl.prefix)
}

func TestNamespacesUsePrefix(t *testing.T) {
	impl := &dynamoDBDataStore{prefix: "p"}
	assert.Equal(t, "p:$inited", impl.initedKey())

	noPrefix := &dynamoDBDataStore{}
	assert.Equal(t, "$inited", noPrefix.initedKey())
}
