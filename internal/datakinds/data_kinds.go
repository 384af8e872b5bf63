// Package datakinds defines how each kind of data model object translates
// between its in-memory representation and the serialized form used by
// persistent stores and update payloads.
package datakinds

import (
	"fmt"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"

	"github.com/launchdarkly/go-datasystem/datamodel"
	"github.com/launchdarkly/go-datasystem/subsystems/ldstoretypes"
)

// Serialize returns the JSON encoding of an item, given its kind and key. A
// deleted item (one with a nil Item) becomes a tombstone object carrying only
// the key, the version, and a deleted marker, so that a persistent store can
// retain the version of the deletion.
func Serialize(kind ldstoretypes.DataKind, key string, item ldstoretypes.ItemDescriptor) []byte {
	if item.Item == nil {
		return serializeTombstone(key, item.Version)
	}
	switch typedItem := item.Item.(type) {
	case *datamodel.FeatureFlag:
		if data, err := datamodel.MarshalFeatureFlag(*typedItem); err == nil {
			return data
		}
	case *datamodel.Segment:
		if data, err := datamodel.MarshalSegment(*typedItem); err == nil {
			return data
		}
	}
	return nil
}

// Deserialize parses the JSON encoding of an item of the given kind. A
// tombstone produces an ItemDescriptor with the deletion version and a nil
// Item.
func Deserialize(kind ldstoretypes.DataKind, data []byte) (ldstoretypes.ItemDescriptor, error) {
	switch kind {
	case ldstoretypes.DataKindFeatures:
		flag, err := datamodel.UnmarshalFeatureFlag(data)
		if err != nil {
			return ldstoretypes.ItemDescriptor{}.NotFound(), err
		}
		if flag.Deleted {
			return ldstoretypes.ItemDescriptor{Version: flag.Version, Item: nil}, nil
		}
		return ldstoretypes.ItemDescriptor{Version: flag.Version, Item: &flag}, nil
	case ldstoretypes.DataKindSegments:
		segment, err := datamodel.UnmarshalSegment(data)
		if err != nil {
			return ldstoretypes.ItemDescriptor{}.NotFound(), err
		}
		if segment.Deleted {
			return ldstoretypes.ItemDescriptor{Version: segment.Version, Item: nil}, nil
		}
		return ldstoretypes.ItemDescriptor{Version: segment.Version, Item: &segment}, nil
	}
	return ldstoretypes.ItemDescriptor{}.NotFound(), fmt.Errorf("unknown data kind")
}

// ToSerializedItemDescriptor converts an in-memory item to the form used by
// persistent store implementations.
func ToSerializedItemDescriptor(
	kind ldstoretypes.DataKind,
	key string,
	item ldstoretypes.ItemDescriptor,
) ldstoretypes.SerializedItemDescriptor {
	return ldstoretypes.SerializedItemDescriptor{
		Version:        item.Version,
		Deleted:        item.Item == nil,
		SerializedItem: Serialize(kind, key, item),
	}
}

func serializeTombstone(key string, version int) []byte {
	w := jwriter.NewWriter()
	obj := w.Object()
	obj.Name("key").String(key)
	obj.Name("version").Int(version)
	obj.Name("deleted").Bool(true)
	obj.End()
	return w.Bytes()
}
