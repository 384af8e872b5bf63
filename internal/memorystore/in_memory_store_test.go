package memorystore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/launchdarkly/go-datasystem/datamodel"
	"github.com/launchdarkly/go-datasystem/subsystems/ldstoretypes"
)

func makeStore() *InMemoryStore {
	return New(ldlog.NewDisabledLoggers())
}

func flagDescriptor(key string, version int) ldstoretypes.KeyedItemDescriptor {
	return ldstoretypes.KeyedItemDescriptor{
		Key:  key,
		Item: ldstoretypes.ItemDescriptor{Version: version, Item: &datamodel.FeatureFlag{Key: key, Version: version}},
	}
}

func tombstoneDescriptor(key string, version int) ldstoretypes.KeyedItemDescriptor {
	return ldstoretypes.KeyedItemDescriptor{
		Key:  key,
		Item: ldstoretypes.ItemDescriptor{Version: version, Item: nil},
	}
}

func TestStoreNotInitializedBeforeSetBasis(t *testing.T) {
	store := makeStore()
	assert.False(t, store.IsInitialized())

	store.ApplyDelta([]ldstoretypes.Collection{
		{Kind: ldstoretypes.DataKindFeatures, Items: []ldstoretypes.KeyedItemDescriptor{flagDescriptor("a", 1)}},
	})
	assert.False(t, store.IsInitialized())

	store.SetBasis(nil)
	assert.True(t, store.IsInitialized())
}

func TestSetBasisReplacesAllData(t *testing.T) {
	store := makeStore()
	store.SetBasis([]ldstoretypes.Collection{
		{Kind: ldstoretypes.DataKindFeatures, Items: []ldstoretypes.KeyedItemDescriptor{
			flagDescriptor("a", 1), flagDescriptor("b", 1),
		}},
	})

	store.SetBasis([]ldstoretypes.Collection{
		{Kind: ldstoretypes.DataKindFeatures, Items: []ldstoretypes.KeyedItemDescriptor{
			flagDescriptor("b", 2),
		}},
	})

	item, err := store.Get(ldstoretypes.DataKindFeatures, "a")
	require.NoError(t, err)
	assert.Equal(t, ldstoretypes.ItemDescriptor{}.NotFound(), item)

	item, err = store.Get(ldstoretypes.DataKindFeatures, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, item.Version)
}

func TestApplyDeltaMergesAndOverwritesUnconditionally(t *testing.T) {
	store := makeStore()
	store.SetBasis([]ldstoretypes.Collection{
		{Kind: ldstoretypes.DataKindFeatures, Items: []ldstoretypes.KeyedItemDescriptor{
			flagDescriptor("a", 5), flagDescriptor("b", 5),
		}},
	})

	// a lower version still wins; version sequencing is the caller's job
	store.ApplyDelta([]ldstoretypes.Collection{
		{Kind: ldstoretypes.DataKindFeatures, Items: []ldstoretypes.KeyedItemDescriptor{
			flagDescriptor("a", 3),
		}},
	})

	item, err := store.Get(ldstoretypes.DataKindFeatures, "a")
	require.NoError(t, err)
	assert.Equal(t, 3, item.Version)

	item, err = store.Get(ldstoretypes.DataKindFeatures, "b")
	require.NoError(t, err)
	assert.Equal(t, 5, item.Version)
}

func TestGetUnknownKindOrKey(t *testing.T) {
	store := makeStore()
	store.SetBasis(nil)

	item, err := store.Get(ldstoretypes.DataKindFeatures, "no-such-key")
	require.NoError(t, err)
	assert.Equal(t, ldstoretypes.ItemDescriptor{}.NotFound(), item)
}

func TestDeletedItemsAreHiddenButRetained(t *testing.T) {
	store := makeStore()
	store.SetBasis([]ldstoretypes.Collection{
		{Kind: ldstoretypes.DataKindFeatures, Items: []ldstoretypes.KeyedItemDescriptor{
			flagDescriptor("a", 1), tombstoneDescriptor("dead", 4),
		}},
	})

	item, err := store.Get(ldstoretypes.DataKindFeatures, "dead")
	require.NoError(t, err)
	assert.Equal(t, ldstoretypes.ItemDescriptor{}.NotFound(), item)

	items, err := store.GetAll(ldstoretypes.DataKindFeatures)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].Key)

	// the tombstone is still visible in the raw contents, with its version
	contents := store.Contents()
	found := false
	for _, coll := range contents {
		if coll.Kind != ldstoretypes.DataKindFeatures {
			continue
		}
		for _, item := range coll.Items {
			if item.Key == "dead" {
				found = true
				assert.Equal(t, 4, item.Item.Version)
				assert.Nil(t, item.Item.Item)
			}
		}
	}
	assert.True(t, found)
}

func TestUpsertRespectsVersions(t *testing.T) {
	store := makeStore()
	store.SetBasis([]ldstoretypes.Collection{
		{Kind: ldstoretypes.DataKindFeatures, Items: []ldstoretypes.KeyedItemDescriptor{
			flagDescriptor("a", 5),
		}},
	})

	updated, err := store.Upsert(ldstoretypes.DataKindFeatures, "a", flagDescriptor("a", 6).Item)
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = store.Upsert(ldstoretypes.DataKindFeatures, "a", flagDescriptor("a", 4).Item)
	require.NoError(t, err)
	assert.False(t, updated)

	item, err := store.Get(ldstoretypes.DataKindFeatures, "a")
	require.NoError(t, err)
	assert.Equal(t, 6, item.Version)
}

func TestUpsertCannotResurrectDeletedItemWithOlderVersion(t *testing.T) {
	store := makeStore()
	store.SetBasis([]ldstoretypes.Collection{
		{Kind: ldstoretypes.DataKindFeatures, Items: []ldstoretypes.KeyedItemDescriptor{
			tombstoneDescriptor("dead", 10),
		}},
	})

	updated, err := store.Upsert(ldstoretypes.DataKindFeatures, "dead", flagDescriptor("dead", 9).Item)
	require.NoError(t, err)
	assert.False(t, updated)

	item, err := store.Get(ldstoretypes.DataKindFeatures, "dead")
	require.NoError(t, err)
	assert.Equal(t, ldstoretypes.ItemDescriptor{}.NotFound(), item)
}

func TestStatusMonitoringIsNotEnabled(t *testing.T) {
	store := makeStore()
	assert.False(t, store.IsStatusMonitoringEnabled())
	assert.NoError(t, store.Close())
}
