// Package datastore provides the wrapper that adapts a persistent store
// implementation to the data system's store interface, adding serialization,
// availability monitoring, and optional caching.
package datastore

import (
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/launchdarkly/go-datasystem/internal/datakinds"
	"github.com/launchdarkly/go-datasystem/internal/datastatus"
	"github.com/launchdarkly/go-datasystem/internal/dependencies"
	"github.com/launchdarkly/go-datasystem/subsystems"
	"github.com/launchdarkly/go-datasystem/subsystems/ldstoretypes"
)

// DefaultCacheTTL is the default amount of time that recently read or updated
// items will be cached in memory, if caching is enabled.
const DefaultCacheTTL = 15 * time.Second

// PersistentDataStoreWrapper presents a subsystems.PersistentDataStore as a
// full DataStore. It handles the serialized-to-deserialized translation in
// both directions, monitors every operation for availability failures, and
// optionally caches read results.
//
// Cache behavior is controlled by the TTL given to the constructor: zero
// disables caching, a positive value caches with that expiry, and a negative
// value caches indefinitely. In the indefinite mode, writes that fail because
// the store is unavailable are retained in the cache and written back when
// the store recovers, so recovery does not require a data refresh from the
// update source.
type PersistentDataStoreWrapper struct {
	core          subsystems.PersistentDataStore
	statusManager *datastatus.DataStoreStatusManager
	cache         *gocache.Cache
	cacheTTL      time.Duration
	requests      singleflight.Group
	loggers       ldlog.Loggers
	inited        bool
	initLock      sync.RWMutex
}

// NewPersistentDataStoreWrapper creates a PersistentDataStoreWrapper around
// the given store implementation. The wrapper takes ownership of the store
// and will close it when it is closed itself.
func NewPersistentDataStoreWrapper(
	core subsystems.PersistentDataStore,
	cacheTTL time.Duration,
	loggers ldlog.Loggers,
) *PersistentDataStoreWrapper {
	w := &PersistentDataStoreWrapper{
		core:     core,
		cacheTTL: cacheTTL,
		loggers:  loggers,
	}
	if cacheTTL != 0 {
		w.cache = gocache.New(cacheTTL, 5*time.Minute)
	}
	// A finite or absent cache cannot replay missed writes, so data may be
	// stale after an outage and the recovery status says so.
	w.statusManager = datastatus.NewDataStoreStatusManager(
		true,
		w.pollAvailabilityAfterOutage,
		!w.hasCacheWithInfiniteTTL(),
		loggers,
	)
	return w
}

// StatusManager returns the availability-status manager for this store.
func (w *PersistentDataStoreWrapper) StatusManager() *datastatus.DataStoreStatusManager {
	return w.statusManager
}

// Init stores a full data set, replacing any previous contents.
func (w *PersistentDataStoreWrapper) Init(allData []ldstoretypes.Collection) error {
	err := w.initCore(allData)
	if w.cache != nil {
		w.cache.Flush()
	}
	if err != nil && !w.hasCacheWithInfiniteTTL() {
		return err
	}
	// In the indefinite-cache mode, a failed init still populates the cache;
	// the data will be written back to the store once it recovers.
	if w.cache != nil {
		for _, coll := range allData {
			w.cacheItems(coll.Kind, coll.Items)
		}
	}
	if err == nil || w.hasCacheWithInfiniteTTL() {
		w.initLock.Lock()
		w.inited = true
		w.initLock.Unlock()
	}
	return err
}

// Get retrieves a single item, filtering deleted item placeholders.
func (w *PersistentDataStoreWrapper) Get(
	kind ldstoretypes.DataKind,
	key string,
) (ldstoretypes.ItemDescriptor, error) {
	if w.cache == nil {
		item, err := w.getAndDeserializeItem(kind, key)
		w.processError(err)
		return item, err
	}
	cacheKey := dataStoreCacheKey(kind, key)
	if data, present := w.cache.Get(cacheKey); present {
		if item, ok := data.(ldstoretypes.ItemDescriptor); ok {
			return item, nil
		}
	}
	// Coalesce concurrent requests for the same key into one store query.
	reqKey := fmt.Sprintf("get:%s:%s", kind.Name(), key)
	itemIntf, err, _ := w.requests.Do(reqKey, func() (interface{}, error) {
		item, err := w.getAndDeserializeItem(kind, key)
		w.processError(err)
		if err == nil {
			w.cache.Set(cacheKey, item, w.cacheExpiration())
		}
		return item, err
	})
	if err != nil || itemIntf == nil {
		return ldstoretypes.ItemDescriptor{}.NotFound(), err
	}
	return itemIntf.(ldstoretypes.ItemDescriptor), nil
}

// GetAll retrieves all items of a kind, filtering deleted item placeholders.
func (w *PersistentDataStoreWrapper) GetAll(
	kind ldstoretypes.DataKind,
) ([]ldstoretypes.KeyedItemDescriptor, error) {
	if w.cache == nil {
		items, err := w.getAllAndDeserialize(kind)
		w.processError(err)
		return withoutDeletedItems(items), err
	}
	cacheKey := dataStoreAllItemsCacheKey(kind)
	if data, present := w.cache.Get(cacheKey); present {
		if items, ok := data.([]ldstoretypes.KeyedItemDescriptor); ok {
			return withoutDeletedItems(items), nil
		}
	}
	reqKey := fmt.Sprintf("all:%s", kind.Name())
	itemsIntf, err, _ := w.requests.Do(reqKey, func() (interface{}, error) {
		items, err := w.getAllAndDeserialize(kind)
		w.processError(err)
		if err == nil {
			w.cache.Set(cacheKey, items, w.cacheExpiration())
		}
		return items, err
	})
	if err != nil || itemsIntf == nil {
		return nil, err
	}
	return withoutDeletedItems(itemsIntf.([]ldstoretypes.KeyedItemDescriptor)), nil
}

// Upsert updates or inserts a single item, subject to the store's version
// check. In the indefinite-cache mode, an update that fails because the store
// is unavailable is kept in the cache for later write-back; the error is
// still returned.
func (w *PersistentDataStoreWrapper) Upsert(
	kind ldstoretypes.DataKind,
	key string,
	newItem ldstoretypes.ItemDescriptor,
) (bool, error) {
	serializedItem := datakinds.ToSerializedItemDescriptor(kind, key, newItem)
	updated, err := w.core.Upsert(kind, key, serializedItem)
	w.processError(err)
	if w.cache == nil {
		return updated, err
	}
	if err != nil {
		if !w.hasCacheWithInfiniteTTL() {
			return updated, err
		}
		// Keep the freshest value locally so the write-back can replay it.
		cachedItem := newItem
		cacheKey := dataStoreCacheKey(kind, key)
		if data, present := w.cache.Get(cacheKey); present {
			if oldItem, ok := data.(ldstoretypes.ItemDescriptor); ok && oldItem.Version >= newItem.Version {
				cachedItem = oldItem
			}
		}
		w.cache.Set(cacheKey, cachedItem, w.cacheExpiration())
		w.updateSingleItemInAllCache(kind, key, cachedItem)
		return updated, err
	}
	if updated {
		w.cache.Set(dataStoreCacheKey(kind, key), newItem, w.cacheExpiration())
		w.updateSingleItemInAllCache(kind, key, newItem)
	} else {
		// The store has a newer version than ours; drop stale cache entries so
		// the next read sees the store's value.
		w.cache.Delete(dataStoreCacheKey(kind, key))
		w.cache.Delete(dataStoreAllItemsCacheKey(kind))
	}
	return updated, err
}

// IsInitialized returns true if the store contains a complete data set. A
// positive result is remembered and never re-queried.
func (w *PersistentDataStoreWrapper) IsInitialized() bool {
	w.initLock.RLock()
	inited := w.inited
	w.initLock.RUnlock()
	if inited {
		return true
	}
	result, _, _ := w.requests.Do("initialized", func() (interface{}, error) {
		return w.core.IsInitialized(), nil
	})
	if result == true {
		w.initLock.Lock()
		w.inited = true
		w.initLock.Unlock()
		return true
	}
	return false
}

// IsStatusMonitoringEnabled returns true: the whole point of this wrapper is
// that the underlying store can fail and recover.
func (w *PersistentDataStoreWrapper) IsStatusMonitoringEnabled() bool {
	return true
}

// Close closes the status manager and the underlying store.
func (w *PersistentDataStoreWrapper) Close() error {
	w.statusManager.Close()
	return w.core.Close()
}

func (w *PersistentDataStoreWrapper) initCore(allData []ldstoretypes.Collection) error {
	serializedAllData := make([]ldstoretypes.SerializedCollection, 0, len(allData))
	for _, coll := range dependencies.SortCollectionsForStoreInit(allData) {
		serializedItems := make([]ldstoretypes.KeyedSerializedItemDescriptor, 0, len(coll.Items))
		for _, item := range coll.Items {
			serializedItems = append(serializedItems, ldstoretypes.KeyedSerializedItemDescriptor{
				Key:  item.Key,
				Item: datakinds.ToSerializedItemDescriptor(coll.Kind, item.Key, item.Item),
			})
		}
		serializedAllData = append(serializedAllData, ldstoretypes.SerializedCollection{
			Kind:  coll.Kind,
			Items: serializedItems,
		})
	}
	err := w.core.Init(serializedAllData)
	w.processError(err)
	return err
}

func (w *PersistentDataStoreWrapper) getAndDeserializeItem(
	kind ldstoretypes.DataKind,
	key string,
) (ldstoretypes.ItemDescriptor, error) {
	serializedItem, err := w.core.Get(kind, key)
	if err != nil || serializedItem.SerializedItem == nil {
		return ldstoretypes.ItemDescriptor{}.NotFound(), err
	}
	if serializedItem.Deleted {
		return ldstoretypes.ItemDescriptor{}.NotFound(), nil
	}
	item, err := datakinds.Deserialize(kind, serializedItem.SerializedItem)
	if err != nil {
		return ldstoretypes.ItemDescriptor{}.NotFound(), err
	}
	if item.Item == nil {
		// a tombstone stored as ordinary JSON
		return ldstoretypes.ItemDescriptor{}.NotFound(), nil
	}
	return item, nil
}

func (w *PersistentDataStoreWrapper) getAllAndDeserialize(
	kind ldstoretypes.DataKind,
) ([]ldstoretypes.KeyedItemDescriptor, error) {
	serializedItems, err := w.core.GetAll(kind)
	if err != nil {
		return nil, err
	}
	ret := make([]ldstoretypes.KeyedItemDescriptor, 0, len(serializedItems))
	for _, serializedItem := range serializedItems {
		if serializedItem.Item.Deleted || serializedItem.Item.SerializedItem == nil {
			ret = append(ret, ldstoretypes.KeyedItemDescriptor{
				Key:  serializedItem.Key,
				Item: ldstoretypes.ItemDescriptor{Version: serializedItem.Item.Version, Item: nil},
			})
			continue
		}
		item, err := datakinds.Deserialize(kind, serializedItem.Item.SerializedItem)
		if err != nil {
			return nil, err
		}
		ret = append(ret, ldstoretypes.KeyedItemDescriptor{Key: serializedItem.Key, Item: item})
	}
	return ret, nil
}

// pollAvailabilityAfterOutage is the availability probe used by the status
// manager while the store is down. On recovery in the indefinite-cache mode,
// it pushes the cached data set back into the store before reporting
// availability; a failed write-back means the store is not really usable yet.
func (w *PersistentDataStoreWrapper) pollAvailabilityAfterOutage() bool {
	if !w.core.IsStoreAvailable() {
		return false
	}
	if !w.hasCacheWithInfiniteTTL() {
		return true
	}
	allData := make([]ldstoretypes.Collection, 0, 2)
	for _, kind := range ldstoretypes.AllDataKinds() {
		if data, present := w.cache.Get(dataStoreAllItemsCacheKey(kind)); present {
			if items, ok := data.([]ldstoretypes.KeyedItemDescriptor); ok {
				allData = append(allData, ldstoretypes.Collection{Kind: kind, Items: items})
			}
		}
	}
	if err := w.initCore(allData); err != nil {
		w.loggers.Errorf("Tried to write cached data to persistent store after outage, but failed: %s", err)
		return false
	}
	w.loggers.Warn("Successfully updated persistent store from cached data")
	return true
}

func (w *PersistentDataStoreWrapper) updateSingleItemInAllCache(
	kind ldstoretypes.DataKind,
	key string,
	newItem ldstoretypes.ItemDescriptor,
) {
	cacheKey := dataStoreAllItemsCacheKey(kind)
	data, present := w.cache.Get(cacheKey)
	if !present {
		return
	}
	oldItems, ok := data.([]ldstoretypes.KeyedItemDescriptor)
	if !ok {
		return
	}
	newItems := make([]ldstoretypes.KeyedItemDescriptor, 0, len(oldItems)+1)
	found := false
	for _, item := range oldItems {
		if item.Key == key {
			newItems = append(newItems, ldstoretypes.KeyedItemDescriptor{Key: key, Item: newItem})
			found = true
		} else {
			newItems = append(newItems, item)
		}
	}
	if !found {
		newItems = append(newItems, ldstoretypes.KeyedItemDescriptor{Key: key, Item: newItem})
	}
	w.cache.Set(cacheKey, newItems, w.cacheExpiration())
}

func (w *PersistentDataStoreWrapper) cacheItems(
	kind ldstoretypes.DataKind,
	items []ldstoretypes.KeyedItemDescriptor,
) {
	itemsCopy := make([]ldstoretypes.KeyedItemDescriptor, len(items))
	copy(itemsCopy, items)
	w.cache.Set(dataStoreAllItemsCacheKey(kind), itemsCopy, w.cacheExpiration())
	for _, item := range items {
		w.cache.Set(dataStoreCacheKey(kind, item.Key), item.Item, w.cacheExpiration())
	}
}

func (w *PersistentDataStoreWrapper) hasCacheWithInfiniteTTL() bool {
	return w.cache != nil && w.cacheTTL < 0
}

func (w *PersistentDataStoreWrapper) cacheExpiration() time.Duration {
	if w.hasCacheWithInfiniteTTL() {
		return gocache.NoExpiration
	}
	return w.cacheTTL
}

func (w *PersistentDataStoreWrapper) processError(err error) {
	if err == nil {
		return
	}
	w.loggers.Errorf("Persistent store returned error: %s", err)
	w.statusManager.UpdateAvailability(false)
}

func dataStoreCacheKey(kind ldstoretypes.DataKind, key string) string {
	return kind.Name() + ":" + key
}

func dataStoreAllItemsCacheKey(kind ldstoretypes.DataKind) string {
	return "all:" + kind.Name()
}

func withoutDeletedItems(items []ldstoretypes.KeyedItemDescriptor) []ldstoretypes.KeyedItemDescriptor {
	ret := make([]ldstoretypes.KeyedItemDescriptor, 0, len(items))
	for _, item := range items {
		if item.Item.Item != nil {
			ret = append(ret, item)
		}
	}
	return ret
}
