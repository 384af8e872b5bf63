package subsystems

import (
	"io"

	"github.com/launchdarkly/go-datasystem/subsystems/ldstoretypes"
)

// ReadOnlyStore is the subset of store operations available to consumers of the
// data system, such as a flag evaluator. The top-level Store's GetActive method
// returns a ReadOnlyStore; which underlying store it is backed by (memory or
// persistent) is an implementation detail that may change over the lifetime of
// the data system.
//
// All methods are safe for concurrent use.
type ReadOnlyStore interface {
	// Get retrieves an item from the specified collection, if available.
	//
	// If the key does not exist in the collection, or refers to a deleted item
	// placeholder, it returns an ItemDescriptor with a Version of -1 and a nil
	// Item.
	Get(kind ldstoretypes.DataKind, key string) (ldstoretypes.ItemDescriptor, error)

	// GetAll retrieves all items from the specified collection, excluding
	// deleted item placeholders.
	GetAll(kind ldstoretypes.DataKind) ([]ldstoretypes.KeyedItemDescriptor, error)

	// IsInitialized returns true if the store has ever received a full data set.
	IsInitialized() bool
}

// DataStore is a full read-write data store. The in-memory store and the
// persistent store wrapper both implement this interface.
//
// Implementations must be safe for concurrent use. Error returns from Init,
// Get, GetAll, and Upsert indicate that the underlying storage failed; they
// never indicate "not found", which is expressed in the descriptor itself.
type DataStore interface {
	ReadOnlyStore
	io.Closer

	// Init overwrites the store's contents with a set of items for each
	// collection, discarding all previous data regardless of versioning.
	Init(allData []ldstoretypes.Collection) error

	// Upsert updates or inserts an item in the specified collection. The item
	// may be a deleted item placeholder (nil Item); the store must retain the
	// placeholder rather than removing the key. It returns true if the store
	// was modified, or false if the update was discarded because the store
	// already contained an equal or greater version.
	Upsert(kind ldstoretypes.DataKind, key string, item ldstoretypes.ItemDescriptor) (bool, error)

	// IsStatusMonitoringEnabled returns true if this store can report on its own
	// availability, meaning that a status provider attached to it will produce
	// meaningful transitions. The in-memory store returns false; the persistent
	// store wrapper returns true.
	IsStatusMonitoringEnabled() bool
}
