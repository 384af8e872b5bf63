// Package memorystore provides the default main-memory data store.
package memorystore

import (
	"sync"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/launchdarkly/go-datasystem/subsystems/ldstoretypes"
)

// InMemoryStore is a thread-safe, in-memory implementation of the data store.
//
// Tombstones for deleted items are retained internally so that version
// information survives a delete, but they are invisible through Get and
// GetAll.
type InMemoryStore struct {
	allData       map[ldstoretypes.DataKind]map[string]ldstoretypes.ItemDescriptor
	isInitialized bool
	sync.RWMutex
	loggers ldlog.Loggers
}

// New creates an instance of the in-memory data store.
func New(loggers ldlog.Loggers) *InMemoryStore {
	return &InMemoryStore{
		allData:       make(map[ldstoretypes.DataKind]map[string]ldstoretypes.ItemDescriptor),
		isInitialized: false,
		loggers:       loggers,
	}
}

// SetBasis atomically replaces the entire contents of the store. After the
// first successful SetBasis, IsInitialized returns true.
func (store *InMemoryStore) SetBasis(allData []ldstoretypes.Collection) {
	store.Lock()

	store.allData = make(map[ldstoretypes.DataKind]map[string]ldstoretypes.ItemDescriptor)
	for _, coll := range allData {
		items := make(map[string]ldstoretypes.ItemDescriptor, len(coll.Items))
		for _, item := range coll.Items {
			items[item.Key] = item.Item
		}
		store.allData[coll.Kind] = items
	}
	store.isInitialized = true

	store.Unlock()
}

// ApplyDelta merges the given items over the existing contents, keyed by
// (kind, key). Existing items are overwritten unconditionally; version
// sequencing is the caller's responsibility.
func (store *InMemoryStore) ApplyDelta(allData []ldstoretypes.Collection) {
	store.Lock()

	for _, coll := range allData {
		items := store.allData[coll.Kind]
		if items == nil {
			items = make(map[string]ldstoretypes.ItemDescriptor, len(coll.Items))
			store.allData[coll.Kind] = items
		}
		for _, item := range coll.Items {
			items[item.Key] = item.Item
		}
	}

	store.Unlock()
}

// Get returns the item for the given kind and key, or a not-found descriptor
// if the key is unknown or refers to a deleted item.
func (store *InMemoryStore) Get(kind ldstoretypes.DataKind, key string) (ldstoretypes.ItemDescriptor, error) {
	store.RLock()

	var coll map[string]ldstoretypes.ItemDescriptor
	var item ldstoretypes.ItemDescriptor
	var ok bool
	coll, ok = store.allData[kind]
	if ok {
		item, ok = coll[key]
	}

	store.RUnlock()

	if ok && item.Item != nil {
		return item, nil
	}
	if store.loggers.IsDebugEnabled() {
		store.loggers.Debugf(`Key %s not found in "%s"`, key, kind.Name())
	}
	return ldstoretypes.ItemDescriptor{}.NotFound(), nil
}

// GetAll returns all non-deleted items of the given kind.
func (store *InMemoryStore) GetAll(kind ldstoretypes.DataKind) ([]ldstoretypes.KeyedItemDescriptor, error) {
	store.RLock()

	var itemsOut []ldstoretypes.KeyedItemDescriptor
	if itemsMap, ok := store.allData[kind]; ok {
		itemsOut = make([]ldstoretypes.KeyedItemDescriptor, 0, len(itemsMap))
		for key, item := range itemsMap {
			if item.Item != nil {
				itemsOut = append(itemsOut, ldstoretypes.KeyedItemDescriptor{Key: key, Item: item})
			}
		}
	}

	store.RUnlock()

	return itemsOut, nil
}

// Contents returns everything in the store, including tombstones for deleted
// items. This is the form used for computing update diffs and for pushing the
// store's state into a persistent store, where deletions must be propagated.
func (store *InMemoryStore) Contents() []ldstoretypes.Collection {
	store.RLock()

	allData := make([]ldstoretypes.Collection, 0, len(store.allData))
	for _, kind := range ldstoretypes.AllDataKinds() {
		itemsMap, ok := store.allData[kind]
		if !ok {
			continue
		}
		items := make([]ldstoretypes.KeyedItemDescriptor, 0, len(itemsMap))
		for key, item := range itemsMap {
			items = append(items, ldstoretypes.KeyedItemDescriptor{Key: key, Item: item})
		}
		allData = append(allData, ldstoretypes.Collection{Kind: kind, Items: items})
	}

	store.RUnlock()

	return allData
}

// Upsert updates or inserts a single item if its version is greater than the
// version of any existing item with the same key, including tombstones. It
// returns true if the item was updated.
func (store *InMemoryStore) Upsert(
	kind ldstoretypes.DataKind,
	key string,
	newItem ldstoretypes.ItemDescriptor,
) (bool, error) {
	store.Lock()

	var coll map[string]ldstoretypes.ItemDescriptor
	var ok bool
	shouldUpdate := true
	updated := false
	if coll, ok = store.allData[kind]; ok {
		if item, ok := coll[key]; ok {
			if item.Version >= newItem.Version {
				shouldUpdate = false
			}
		}
	} else {
		store.allData[kind] = map[string]ldstoretypes.ItemDescriptor{key: newItem}
		shouldUpdate = false
		updated = true
	}
	if shouldUpdate {
		coll[key] = newItem
		updated = true
	}

	store.Unlock()

	return updated, nil
}

// IsInitialized returns true if the store has ever received a full data set.
func (store *InMemoryStore) IsInitialized() bool {
	store.RLock()
	defer store.RUnlock()
	return store.isInitialized
}

// IsStatusMonitoringEnabled returns false, because the in-memory store cannot
// become unavailable.
func (store *InMemoryStore) IsStatusMonitoringEnabled() bool {
	return false
}

// Close is a no-op for the in-memory store.
func (store *InMemoryStore) Close() error {
	return nil
}
