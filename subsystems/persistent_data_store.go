package subsystems

import (
	"io"

	"github.com/launchdarkly/go-datasystem/subsystems/ldstoretypes"
)

// PersistentDataStore is the interface for a data store that holds flags and
// segments in a serialized form, such as a database integration.
//
// The data system provides its own wrapper on top of a PersistentDataStore that
// handles serialization, availability monitoring, and optional caching; the
// store implementation should simply do every query or update that it is told
// to do.
//
// Implementations must be safe for concurrent use. Whenever one of the store's
// methods returns an error, the data system assumes the store may have become
// unavailable (for instance, the database connection was lost) and begins
// calling IsStoreAvailable at intervals until it returns true.
type PersistentDataStore interface {
	io.Closer

	// Init overwrites the store's contents with a set of items for each
	// collection. All previous data should be discarded, regardless of
	// versioning.
	//
	// If the update cannot be done atomically, the store must first add or
	// update each item in the same order that they are given in the input data,
	// and then delete any previously stored items that were not in the input.
	Init(allData []ldstoretypes.SerializedCollection) error

	// Get retrieves an item from the specified collection, if available.
	//
	// If the key does not exist in the collection, it returns a descriptor with
	// a Version of -1 and a nil SerializedItem. If the store contains a deleted
	// item placeholder for the key, it returns that placeholder rather than
	// filtering it out.
	Get(kind ldstoretypes.DataKind, key string) (ldstoretypes.SerializedItemDescriptor, error)

	// GetAll retrieves all items from the specified collection, including any
	// deleted item placeholders.
	GetAll(kind ldstoretypes.DataKind) ([]ldstoretypes.KeyedSerializedItemDescriptor, error)

	// Upsert updates or inserts an item in the specified collection, but only
	// if the existing version (if any) is less than the new version. The item
	// may be a deleted item placeholder, which the store should retain if the
	// version check passes. It returns true if the store was modified.
	Upsert(kind ldstoretypes.DataKind, key string, item ldstoretypes.SerializedItemDescriptor) (bool, error)

	// IsInitialized returns true if the store contains a complete data set,
	// meaning that Init has been called at least once, possibly by a different
	// process sharing the same store.
	IsInitialized() bool

	// IsStoreAvailable tests whether the store seems to be functioning
	// normally. This should be the smallest possible operation that determines
	// whether (for instance) the database can be reached, not a detailed test.
	IsStoreAvailable() bool
}
