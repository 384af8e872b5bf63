package dependencies

import (
	"github.com/launchdarkly/go-datasystem/datamodel"
	"github.com/launchdarkly/go-datasystem/subsystems/ldstoretypes"
)

// SortCollectionsForStoreInit returns a copy of the data set in an order
// suitable for writing to a persistent store that does not support
// transactions: segments are written before flags, and flags are ordered so
// that a flag's prerequisites are written before the flag itself. If a reader
// sees a partially written data set, items that have been written never refer
// to items that have not.
func SortCollectionsForStoreInit(allData []ldstoretypes.Collection) []ldstoretypes.Collection {
	colls := make([]ldstoretypes.Collection, 0, len(allData))
	for _, kind := range ldstoretypes.AllDataKinds() {
		for _, coll := range allData {
			if coll.Kind != kind {
				continue
			}
			if kind == ldstoretypes.DataKindFeatures {
				coll = sortCollectionForStoreInit(coll)
			}
			colls = append(colls, coll)
		}
	}
	return colls
}

func sortCollectionForStoreInit(coll ldstoretypes.Collection) ldstoretypes.Collection {
	itemsOut := make([]ldstoretypes.KeyedItemDescriptor, 0, len(coll.Items))
	remainingItems := make(map[string]ldstoretypes.ItemDescriptor, len(coll.Items))
	for _, item := range coll.Items {
		remainingItems[item.Key] = item.Item
	}
	// Iterate over the original slice so the ordering is deterministic apart
	// from dependency constraints.
	for _, item := range coll.Items {
		if _, ok := remainingItems[item.Key]; ok {
			addWithDependenciesFirst(item.Key, remainingItems, &itemsOut)
		}
	}
	return ldstoretypes.Collection{Kind: coll.Kind, Items: itemsOut}
}

func addWithDependenciesFirst(
	startingKey string,
	remainingItems map[string]ldstoretypes.ItemDescriptor,
	out *[]ldstoretypes.KeyedItemDescriptor,
) {
	startItem := remainingItems[startingKey]
	delete(remainingItems, startingKey) // mark as visited
	if flag, ok := startItem.Item.(*datamodel.FeatureFlag); ok {
		for _, prereq := range flag.Prerequisites {
			if _, ok := remainingItems[prereq.Key]; ok {
				addWithDependenciesFirst(prereq.Key, remainingItems, out)
			}
		}
	}
	*out = append(*out, ldstoretypes.KeyedItemDescriptor{Key: startingKey, Item: startItem})
}
