// Package dependencies tracks the relationships between data items, so that a
// change to one item can be translated into the full set of items whose
// evaluation results may have changed.
package dependencies

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/launchdarkly/go-datasystem/datamodel"
	"github.com/launchdarkly/go-datasystem/subsystems/ldstoretypes"
)

// KindAndKey identifies a single data item.
type KindAndKey struct {
	Kind ldstoretypes.DataKind
	Key  string
}

// KindAndKeySet is a set of data item identifiers.
type KindAndKeySet map[KindAndKey]struct{}

// Add adds a member to the set.
func (s KindAndKeySet) Add(value KindAndKey) { s[value] = struct{}{} }

// Contains tests whether the value is in the set.
func (s KindAndKeySet) Contains(value KindAndKey) bool {
	_, ok := s[value]
	return ok
}

// DependencyTracker maintains a bidirectional dependency graph over data
// items. A flag depends on its prerequisite flags and on any segments
// referenced by its rules; a segment can depend on other segments referenced
// by its own rules.
//
// DependencyTracker is not safe for concurrent use; the owning store guards it
// with its own lock.
type DependencyTracker struct {
	dependenciesFrom map[KindAndKey]KindAndKeySet
	dependenciesTo   map[KindAndKey]KindAndKeySet
}

// NewDependencyTracker creates a DependencyTracker with no edges.
func NewDependencyTracker() *DependencyTracker {
	return &DependencyTracker{
		dependenciesFrom: make(map[KindAndKey]KindAndKeySet),
		dependenciesTo:   make(map[KindAndKey]KindAndKeySet),
	}
}

// UpdateDependenciesFrom replaces the recorded dependency edges for a single
// item with the edges extracted from its current state. A deleted item (nil
// Item) simply has its old edges removed.
func (d *DependencyTracker) UpdateDependenciesFrom(
	kind ldstoretypes.DataKind,
	fromKey string,
	fromItem ldstoretypes.ItemDescriptor,
) {
	fromWhat := KindAndKey{Kind: kind, Key: fromKey}
	updatedDependencies := computeDependenciesFrom(kind, fromItem)

	if oldDependencySet, ok := d.dependenciesFrom[fromWhat]; ok {
		for oldDep := range oldDependencySet {
			if depsToThisOldDep := d.dependenciesTo[oldDep]; depsToThisOldDep != nil {
				delete(depsToThisOldDep, fromWhat)
			}
		}
	}

	if len(updatedDependencies) == 0 {
		delete(d.dependenciesFrom, fromWhat)
	} else {
		d.dependenciesFrom[fromWhat] = updatedDependencies
		for newDep := range updatedDependencies {
			depsToThisNewDep := d.dependenciesTo[newDep]
			if depsToThisNewDep == nil {
				depsToThisNewDep = make(KindAndKeySet)
				d.dependenciesTo[newDep] = depsToThisNewDep
			}
			depsToThisNewDep.Add(fromWhat)
		}
	}
}

// Reset removes all tracked edges, prior to a full rebuild after a complete
// data set is received.
func (d *DependencyTracker) Reset() {
	d.dependenciesFrom = make(map[KindAndKey]KindAndKeySet)
	d.dependenciesTo = make(map[KindAndKey]KindAndKeySet)
}

// AddAffectedItems inserts the given item, plus every item that transitively
// depends on it, into itemsOut. The accumulator set doubles as the visited set,
// so circular references cannot cause infinite recursion.
func (d *DependencyTracker) AddAffectedItems(itemsOut KindAndKeySet, initialModifiedItem KindAndKey) {
	if !itemsOut.Contains(initialModifiedItem) {
		itemsOut.Add(initialModifiedItem)
		for affectedItem := range d.dependenciesTo[initialModifiedItem] {
			d.AddAffectedItems(itemsOut, affectedItem)
		}
	}
}

func computeDependenciesFrom(
	kind ldstoretypes.DataKind,
	fromItem ldstoretypes.ItemDescriptor,
) KindAndKeySet {
	if fromItem.Item == nil {
		return nil
	}
	var ret KindAndKeySet
	checkClauses := func(clauses []datamodel.Clause) {
		for _, c := range clauses {
			if c.Op != datamodel.OperatorSegmentMatch {
				continue
			}
			for _, v := range c.Values {
				if v.Type() == ldvalue.StringType {
					if ret == nil {
						ret = make(KindAndKeySet)
					}
					ret.Add(KindAndKey{Kind: ldstoretypes.DataKindSegments, Key: v.StringValue()})
				}
			}
		}
	}
	switch item := fromItem.Item.(type) {
	case *datamodel.FeatureFlag:
		if len(item.Prerequisites) > 0 {
			ret = make(KindAndKeySet, len(item.Prerequisites))
			for _, p := range item.Prerequisites {
				ret.Add(KindAndKey{Kind: ldstoretypes.DataKindFeatures, Key: p.Key})
			}
		}
		for _, r := range item.Rules {
			checkClauses(r.Clauses)
		}
	case *datamodel.Segment:
		for _, r := range item.Rules {
			checkClauses(r.Clauses)
		}
	}
	return ret
}
