// Package sharedtest contains types and helpers used by tests throughout this
// project. Nothing in this package is part of the supported API.
package sharedtest

import (
	"sync"

	"github.com/launchdarkly/go-datasystem/subsystems/ldstoretypes"
)

// MockPersistentDataStore is a test implementation of the persistent store
// interface. It holds serialized items in memory and can be told to fail or
// to report itself unavailable.
type MockPersistentDataStore struct {
	data        map[ldstoretypes.DataKind]map[string]ldstoretypes.SerializedItemDescriptor
	fakeError   error
	available   bool
	inited      bool
	initCount   int
	queryCount  int
	closed      bool
	lock        sync.Mutex
}

// NewMockPersistentDataStore creates an empty MockPersistentDataStore that is
// available and uninitialized.
func NewMockPersistentDataStore() *MockPersistentDataStore {
	return &MockPersistentDataStore{
		data:      make(map[ldstoretypes.DataKind]map[string]ldstoretypes.SerializedItemDescriptor),
		available: true,
	}
}

// SetFakeError causes every subsequent operation (except availability checks)
// to return the given error. Passing nil clears it.
func (m *MockPersistentDataStore) SetFakeError(err error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.fakeError = err
}

// SetAvailable controls what IsStoreAvailable reports.
func (m *MockPersistentDataStore) SetAvailable(available bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.available = available
}

// ForceSet directly stores an item, bypassing the version check and any fake
// error.
func (m *MockPersistentDataStore) ForceSet(
	kind ldstoretypes.DataKind,
	key string,
	item ldstoretypes.SerializedItemDescriptor,
) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.itemsFor(kind)[key] = item
}

// ForceGet directly reads an item, bypassing any fake error.
func (m *MockPersistentDataStore) ForceGet(
	kind ldstoretypes.DataKind,
	key string,
) (ldstoretypes.SerializedItemDescriptor, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	item, ok := m.itemsFor(kind)[key]
	return item, ok
}

// InitCount returns the number of times Init has been called.
func (m *MockPersistentDataStore) InitCount() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.initCount
}

// QueryCount returns the number of Get and GetAll calls that reached the
// store (as opposed to being served from a wrapper's cache).
func (m *MockPersistentDataStore) QueryCount() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.queryCount
}

// IsClosed returns true if Close has been called.
func (m *MockPersistentDataStore) IsClosed() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.closed
}

// Init replaces all data.
func (m *MockPersistentDataStore) Init(allData []ldstoretypes.SerializedCollection) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.initCount++
	if m.fakeError != nil {
		return m.fakeError
	}
	m.data = make(map[ldstoretypes.DataKind]map[string]ldstoretypes.SerializedItemDescriptor)
	for _, coll := range allData {
		items := make(map[string]ldstoretypes.SerializedItemDescriptor, len(coll.Items))
		for _, item := range coll.Items {
			items[item.Key] = item.Item
		}
		m.data[coll.Kind] = items
	}
	m.inited = true
	return nil
}

// Get retrieves one item.
func (m *MockPersistentDataStore) Get(
	kind ldstoretypes.DataKind,
	key string,
) (ldstoretypes.SerializedItemDescriptor, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.queryCount++
	if m.fakeError != nil {
		return ldstoretypes.SerializedItemDescriptor{}.NotFound(), m.fakeError
	}
	if item, ok := m.itemsFor(kind)[key]; ok {
		return item, nil
	}
	return ldstoretypes.SerializedItemDescriptor{}.NotFound(), nil
}

// GetAll retrieves all items of a kind.
func (m *MockPersistentDataStore) GetAll(
	kind ldstoretypes.DataKind,
) ([]ldstoretypes.KeyedSerializedItemDescriptor, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.queryCount++
	if m.fakeError != nil {
		return nil, m.fakeError
	}
	var ret []ldstoretypes.KeyedSerializedItemDescriptor
	for key, item := range m.itemsFor(kind) {
		ret = append(ret, ldstoretypes.KeyedSerializedItemDescriptor{Key: key, Item: item})
	}
	return ret, nil
}

// Upsert stores an item if its version is newer than any existing version.
func (m *MockPersistentDataStore) Upsert(
	kind ldstoretypes.DataKind,
	key string,
	newItem ldstoretypes.SerializedItemDescriptor,
) (bool, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.fakeError != nil {
		return false, m.fakeError
	}
	items := m.itemsFor(kind)
	if oldItem, ok := items[key]; ok && oldItem.Version >= newItem.Version {
		return false, nil
	}
	items[key] = newItem
	return true, nil
}

// IsInitialized reports whether Init has ever succeeded.
func (m *MockPersistentDataStore) IsInitialized() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.inited
}

// IsStoreAvailable reports the value set with SetAvailable.
func (m *MockPersistentDataStore) IsStoreAvailable() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.available
}

// Close marks the store closed.
func (m *MockPersistentDataStore) Close() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.closed = true
	return nil
}

func (m *MockPersistentDataStore) itemsFor(kind ldstoretypes.DataKind) map[string]ldstoretypes.SerializedItemDescriptor {
	if items, ok := m.data[kind]; ok {
		return items
	}
	items := make(map[string]ldstoretypes.SerializedItemDescriptor)
	m.data[kind] = items
	return items
}
