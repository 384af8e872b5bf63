package dependencies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/launchdarkly/go-datasystem/datamodel"
	"github.com/launchdarkly/go-datasystem/subsystems/ldstoretypes"
)

func flagKey(key string) KindAndKey {
	return KindAndKey{Kind: ldstoretypes.DataKindFeatures, Key: key}
}

func segmentKey(key string) KindAndKey {
	return KindAndKey{Kind: ldstoretypes.DataKindSegments, Key: key}
}

func makeFlagWithPrereqs(key string, prereqKeys ...string) ldstoretypes.ItemDescriptor {
	flag := &datamodel.FeatureFlag{Key: key, Version: 1}
	for _, p := range prereqKeys {
		flag.Prerequisites = append(flag.Prerequisites, datamodel.Prerequisite{Key: p})
	}
	return ldstoretypes.ItemDescriptor{Version: 1, Item: flag}
}

func makeFlagWithSegmentMatch(key string, segmentKeys ...string) ldstoretypes.ItemDescriptor {
	var values []ldvalue.Value
	for _, s := range segmentKeys {
		values = append(values, ldvalue.String(s))
	}
	flag := &datamodel.FeatureFlag{
		Key:     key,
		Version: 1,
		Rules: []datamodel.FlagRule{
			{Clauses: []datamodel.Clause{{Op: datamodel.OperatorSegmentMatch, Values: values}}},
		},
	}
	return ldstoretypes.ItemDescriptor{Version: 1, Item: flag}
}

func makeSegmentWithSegmentMatch(key string, segmentKeys ...string) ldstoretypes.ItemDescriptor {
	var values []ldvalue.Value
	for _, s := range segmentKeys {
		values = append(values, ldvalue.String(s))
	}
	segment := &datamodel.Segment{
		Key:     key,
		Version: 1,
		Rules: []datamodel.SegmentRule{
			{Clauses: []datamodel.Clause{{Op: datamodel.OperatorSegmentMatch, Values: values}}},
		},
	}
	return ldstoretypes.ItemDescriptor{Version: 1, Item: segment}
}

func affectedItems(d *DependencyTracker, start KindAndKey) KindAndKeySet {
	set := make(KindAndKeySet)
	d.AddAffectedItems(set, start)
	return set
}

func TestFlagPrerequisiteEdges(t *testing.T) {
	d := NewDependencyTracker()
	d.UpdateDependenciesFrom(ldstoretypes.DataKindFeatures, "f1", makeFlagWithPrereqs("f1", "f2"))

	set := affectedItems(d, flagKey("f2"))
	assert.Equal(t, KindAndKeySet{flagKey("f2"): {}, flagKey("f1"): {}}, set)
}

func TestFlagSegmentMatchEdges(t *testing.T) {
	d := NewDependencyTracker()
	d.UpdateDependenciesFrom(ldstoretypes.DataKindFeatures, "f1", makeFlagWithSegmentMatch("f1", "s1"))

	// updating s1 must report f1 as affected even though f1 was not mentioned
	set := affectedItems(d, segmentKey("s1"))
	assert.Contains(t, set, flagKey("f1"))
}

func TestTransitiveClosureThroughSegments(t *testing.T) {
	d := NewDependencyTracker()
	d.UpdateDependenciesFrom(ldstoretypes.DataKindFeatures, "f1", makeFlagWithSegmentMatch("f1", "s1"))
	d.UpdateDependenciesFrom(ldstoretypes.DataKindSegments, "s1", makeSegmentWithSegmentMatch("s1", "s2"))

	set := affectedItems(d, segmentKey("s2"))
	assert.Contains(t, set, segmentKey("s1"))
	assert.Contains(t, set, flagKey("f1"))
}

func TestCircularReferencesDoNotRecurseForever(t *testing.T) {
	d := NewDependencyTracker()
	d.UpdateDependenciesFrom(ldstoretypes.DataKindSegments, "s1", makeSegmentWithSegmentMatch("s1", "s2"))
	d.UpdateDependenciesFrom(ldstoretypes.DataKindSegments, "s2", makeSegmentWithSegmentMatch("s2", "s1"))

	set := affectedItems(d, segmentKey("s1"))
	assert.Equal(t, KindAndKeySet{segmentKey("s1"): {}, segmentKey("s2"): {}}, set)
}

func TestUpdateReplacesOldEdges(t *testing.T) {
	d := NewDependencyTracker()
	d.UpdateDependenciesFrom(ldstoretypes.DataKindFeatures, "f1", makeFlagWithPrereqs("f1", "f2"))
	d.UpdateDependenciesFrom(ldstoretypes.DataKindFeatures, "f1", makeFlagWithPrereqs("f1", "f3"))

	assert.NotContains(t, affectedItems(d, flagKey("f2")), flagKey("f1"))
	assert.Contains(t, affectedItems(d, flagKey("f3")), flagKey("f1"))
}

func TestDeletedItemHasNoEdges(t *testing.T) {
	d := NewDependencyTracker()
	d.UpdateDependenciesFrom(ldstoretypes.DataKindFeatures, "f1", makeFlagWithPrereqs("f1", "f2"))
	d.UpdateDependenciesFrom(ldstoretypes.DataKindFeatures, "f1",
		ldstoretypes.ItemDescriptor{Version: 2, Item: nil})

	assert.NotContains(t, affectedItems(d, flagKey("f2")), flagKey("f1"))
}

func TestReset(t *testing.T) {
	d := NewDependencyTracker()
	d.UpdateDependenciesFrom(ldstoretypes.DataKindFeatures, "f1", makeFlagWithPrereqs("f1", "f2"))
	d.Reset()

	assert.Equal(t, KindAndKeySet{flagKey("f2"): {}}, affectedItems(d, flagKey("f2")))
}

func TestSortCollectionsForStoreInit(t *testing.T) {
	allData := []ldstoretypes.Collection{
		{
			Kind: ldstoretypes.DataKindFeatures,
			Items: []ldstoretypes.KeyedItemDescriptor{
				{Key: "a", Item: makeFlagWithPrereqs("a", "b", "c")},
				{Key: "b", Item: makeFlagWithPrereqs("b", "c")},
				{Key: "c", Item: makeFlagWithPrereqs("c")},
			},
		},
		{
			Kind: ldstoretypes.DataKindSegments,
			Items: []ldstoretypes.KeyedItemDescriptor{
				{Key: "s1", Item: makeSegmentWithSegmentMatch("s1")},
			},
		},
	}

	sorted := SortCollectionsForStoreInit(allData)
	require.Len(t, sorted, 2)

	// segments always come first
	assert.Equal(t, ldstoretypes.DataKindSegments, sorted[0].Kind)
	assert.Equal(t, ldstoretypes.DataKindFeatures, sorted[1].Kind)

	// each flag appears after all of its prerequisites
	positions := make(map[string]int)
	for i, item := range sorted[1].Items {
		positions[item.Key] = i
	}
	require.Len(t, positions, 3)
	assert.Greater(t, positions["a"], positions["b"])
	assert.Greater(t, positions["a"], positions["c"])
	assert.Greater(t, positions["b"], positions["c"])
}

func TestSortLeavesCircularPrerequisitesIntact(t *testing.T) {
	allData := []ldstoretypes.Collection{
		{
			Kind: ldstoretypes.DataKindFeatures,
			Items: []ldstoretypes.KeyedItemDescriptor{
				{Key: "a", Item: makeFlagWithPrereqs("a", "b")},
				{Key: "b", Item: makeFlagWithPrereqs("b", "a")},
			},
		},
	}

	sorted := SortCollectionsForStoreInit(allData)
	require.Len(t, sorted, 1)
	assert.Len(t, sorted[0].Items, 2)
}
