package ldstoretypes

// ItemDescriptor is a versioned item (or placeholder) storable in a data store.
//
// For any given key within a DataKind, there can be either an existing item with
// a version, or a "tombstone" placeholder representing a deleted item (also with
// a version). Deleted item placeholders are used so that if an item is first
// updated with version N and then deleted with version N+1, but a store receives
// those changes out of order, version N will not overwrite the deletion.
type ItemDescriptor struct {
	// Version is the version number of this data, provided by the update source.
	Version int
	// Item is the data item, or nil if this is a placeholder for a deleted item.
	Item interface{}
}

// NotFound is a convenience method to return a value indicating no such item exists.
func (d ItemDescriptor) NotFound() ItemDescriptor {
	return ItemDescriptor{Version: -1, Item: nil}
}

// SerializedItemDescriptor is a versioned item (or placeholder) storable in a
// persistent data store. It is equivalent to ItemDescriptor, but the item is in
// its serialized JSON representation; persistent store integrations deal only
// with the serialized form.
type SerializedItemDescriptor struct {
	// Version is the version number of this data, provided by the update source.
	Version int
	// Deleted is true if this is a placeholder (tombstone) for a deleted item. If
	// so, SerializedItem still contains a byte string representing the deleted
	// item, but a persistent store implementation has the option of representing
	// the placeholder in a more efficient way instead of storing that.
	Deleted bool
	// SerializedItem is the data item's serialized representation.
	SerializedItem []byte
}

// NotFound is a convenience method to return a value indicating no such item exists.
func (d SerializedItemDescriptor) NotFound() SerializedItemDescriptor {
	return SerializedItemDescriptor{Version: -1, SerializedItem: nil}
}

// KeyedItemDescriptor is a key-value pair containing an ItemDescriptor.
type KeyedItemDescriptor struct {
	// Key is the unique key of this item within its DataKind.
	Key string
	// Item is the versioned item.
	Item ItemDescriptor
}

// KeyedSerializedItemDescriptor is a key-value pair containing a
// SerializedItemDescriptor.
type KeyedSerializedItemDescriptor struct {
	// Key is the unique key of this item within its DataKind.
	Key string
	// Item is the versioned serialized item.
	Item SerializedItemDescriptor
}

// Collection is a grouping of items of a single data kind.
type Collection struct {
	Kind  DataKind
	Items []KeyedItemDescriptor
}

// SerializedCollection is a grouping of serialized items of a single data kind.
type SerializedCollection struct {
	Kind  DataKind
	Items []KeyedSerializedItemDescriptor
}
