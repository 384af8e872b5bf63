package datamodel

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldattr"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Segment describes a group of contexts based on context keys and/or matching
// rules.
type Segment struct {
	// Key is the unique key of the segment.
	Key string
	// Included is a list of context keys (for the default kind) that are always
	// matched by this segment.
	Included []string
	// Excluded is a list of context keys (for the default kind) that are never
	// matched by this segment, unless the key is also in Included.
	Excluded []string
	// IncludedContexts contains inclusion lists for other context kinds.
	IncludedContexts []SegmentTarget
	// ExcludedContexts contains exclusion lists for other context kinds.
	ExcludedContexts []SegmentTarget
	// Salt is a randomized value assigned to this segment when it is created,
	// used as an input to the bucketing hash so that rollouts are consistent
	// within the segment but not predictable from other segments.
	Salt string
	// Rules is a list of rules that may match a context. Rules are ignored for
	// any context key that is in Included or Excluded.
	Rules []SegmentRule
	// Unbounded is true if this is a segment whose membership is too large to
	// be stored in the segment itself and is computed externally (a "big
	// segment"). Such a segment has no Included/Excluded lists.
	Unbounded bool
	// UnboundedContextKind is the context kind associated with an unbounded
	// segment's membership. An empty value means the default kind.
	UnboundedContextKind ldcontext.Kind
	// Generation is a counter that is incremented whenever an unbounded
	// segment's externally computed membership is fully recomputed, so that
	// membership lookups can be scoped to the correct data set. It is undefined
	// for segments created before this field existed; such segments cannot be
	// queried reliably.
	Generation ldvalue.OptionalInt
	// Version is an integer that is incremented each time the configuration of
	// the segment changes.
	Version int
	// Deleted is true if this is a placeholder (tombstone) for a deleted
	// segment.
	Deleted bool

	// preprocessed is derived data created by PreprocessSegment. It is never
	// serialized.
	preprocessed segmentPreprocessedData
}

// GetKey returns the string key for the segment.
func (s *Segment) GetKey() string { return s.Key }

// GetVersion returns the version of the segment.
func (s *Segment) GetVersion() int { return s.Version }

// SegmentTarget describes a set of context keys of some context kind that are
// included or excluded from a segment.
type SegmentTarget struct {
	// ContextKind is the kind of context these keys apply to. An empty value
	// means the default kind.
	ContextKind ldcontext.Kind
	// Values is the set of context keys.
	Values []string

	preprocessed targetPreprocessedData
}

// SegmentRule describes a single rule within a segment: a set of ANDed
// matching conditions, optionally narrowed to a percentage of the matching
// contexts.
type SegmentRule struct {
	// ID is a randomized identifier assigned to each rule when it is created.
	ID string
	// Clauses is the ANDed list of conditions making up the rule.
	Clauses []Clause
	// Weight, if defined, narrows the rule to only a percentage of the contexts
	// that match its clauses, as an integer from 0 (0%) to 100000 (100%).
	Weight ldvalue.OptionalInt
	// BucketBy specifies which context attribute distinguishes between contexts
	// when Weight is applied. The default (an undefined Ref) is the context key.
	BucketBy ldattr.Ref
	// RolloutContextKind is the kind of context whose attributes the Weight
	// bucketing is based on. An empty value means the default kind.
	RolloutContextKind ldcontext.Kind
}
