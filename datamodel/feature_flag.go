package datamodel

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldattr"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// FeatureFlag describes an individual feature flag.
//
// The fields of this struct are exported for use by other components of the
// data system. Application code should not normally reference them directly;
// flag data comes from an update source in JSON form and should be
// deserialized using UnmarshalFeatureFlag.
type FeatureFlag struct {
	// Key is the unique string key of the feature flag.
	Key string
	// On is true if targeting is turned on for this flag.
	//
	// If On is false, the evaluator always uses OffVariation and ignores all
	// other fields.
	On bool
	// Prerequisites is a list of flag conditions that must be satisfied before
	// this flag's own targeting applies. If any prerequisite is not met, the
	// flag behaves as if targeting were turned off.
	Prerequisites []Prerequisite
	// Targets contains sets of individually targeted context keys for the
	// default context kind. Targets take precedence over Rules.
	Targets []Target
	// ContextTargets contains sets of individually targeted context keys for
	// other context kinds.
	ContextTargets []Target
	// Rules is a list of rules that may match a context. If a context is
	// matched by a rule, all subsequent rules are skipped. Rules are ignored if
	// targeting is turned off.
	Rules []FlagRule
	// Fallthrough defines the flag's behavior if targeting is turned on but the
	// context is not matched by any target or rule.
	Fallthrough VariationOrRollout
	// OffVariation specifies the variation index to use if targeting is turned
	// off. If undefined, the evaluation result is a null value with no
	// variation index.
	OffVariation ldvalue.OptionalInt
	// Variations is the list of all allowable variation values for this flag.
	// Every variation index elsewhere in the flag is a zero-based index into
	// this list.
	Variations []ldvalue.Value
	// Salt is a randomized value assigned to this flag when it is created. The
	// bucketing hash uses it so that rollouts are consistent within each flag
	// but not predictable from one flag to another.
	Salt string
	// Version is an integer that is incremented each time the configuration of
	// the flag changes.
	Version int
	// Deleted is true if this is not actually a feature flag but a placeholder
	// (tombstone) for a deleted flag. This is only relevant in data store
	// implementations; deleted flags are never evaluated.
	Deleted bool

	// preprocessed is derived data created by PreprocessFlag. It is never
	// serialized.
	preprocessed flagPreprocessedData
}

// GetKey returns the string key for the flag.
func (f *FeatureFlag) GetKey() string { return f.Key }

// GetVersion returns the version of the flag.
func (f *FeatureFlag) GetVersion() int { return f.Version }

// Prerequisite describes a requirement that another feature flag return a
// specific variation.
//
// The condition is met if the prerequisite flag has targeting turned on and
// returns the specified variation. Returning that value via OffVariation does
// not count.
type Prerequisite struct {
	// Key is the unique key of the feature flag to be evaluated as a prerequisite.
	Key string
	// Variation is the index of the variation that the prerequisite flag must
	// return in order for the condition to be met.
	Variation int

	preprocessed prerequisitePreprocessedData
}

// Target describes a set of contexts that will receive a specific variation.
type Target struct {
	// ContextKind is the kind of context this target list applies to. An empty
	// value in Targets means the default kind.
	ContextKind ldcontext.Kind
	// Values is the set of context keys included in this target.
	Values []string
	// Variation is the index of the variation to be returned if the context key
	// matches one of the values.
	Variation int

	preprocessed targetPreprocessedData
}

// FlagRule describes a single rule within a feature flag: a set of ANDed
// matching conditions for a context, with either a fixed variation or a
// rollout to use if the context matches all of the clauses.
type FlagRule struct {
	// VariationOrRollout properties define what to return if the context
	// matches this rule.
	VariationOrRollout
	// ID is a randomized identifier assigned to each rule when it is created,
	// used in evaluation reasons.
	ID string
	// Clauses is the ANDed list of conditions making up the rule.
	Clauses []Clause

	preprocessed rulePreprocessedData
}

// RolloutKind describes whether a rollout is a simple percentage rollout or
// represents an experiment. Experiments have different behavior for tracking
// and variation bucketing.
type RolloutKind string

const (
	// RolloutKindRollout represents a simple percentage rollout. This is the
	// default kind.
	RolloutKindRollout RolloutKind = "rollout"
	// RolloutKindExperiment represents an experiment.
	RolloutKindExperiment RolloutKind = "experiment"
)

// VariationOrRollout describes either a fixed variation or a percentage
// rollout.
//
// Invariant: one of the two fields is defined.
type VariationOrRollout struct {
	// Variation, if defined, specifies the index of the variation to return.
	Variation ldvalue.OptionalInt
	// Rollout, if Variation is undefined, specifies a percentage rollout.
	Rollout Rollout
}

// Rollout describes how contexts are bucketed into variations during a
// percentage rollout.
type Rollout struct {
	// Kind specifies whether this is a simple rollout or an experiment.
	Kind RolloutKind
	// ContextKind is the kind of context whose attributes the bucketing is
	// based on. An empty value means the default kind.
	ContextKind ldcontext.Kind
	// Variations is the list of variations in the rollout and the percentage of
	// contexts to include in each. The weights should add up to 100000 (100%);
	// any leftover percentage behaves as if it were added to the last element.
	Variations []WeightedVariation
	// BucketBy specifies which context attribute distinguishes between contexts
	// in the rollout. The default (an undefined Ref) is the context key.
	BucketBy ldattr.Ref
	// Seed, if defined, overrides the flag key and salt as inputs to the
	// bucketing hash, so that different flags can share bucketing assignments.
	Seed ldvalue.OptionalInt
}

// IsExperiment returns whether this rollout represents an experiment.
func (r Rollout) IsExperiment() bool {
	return r.Kind == RolloutKindExperiment
}

// WeightedVariation describes a fraction of contexts that will receive a
// specific variation.
type WeightedVariation struct {
	// Variation is the index of the variation to be returned if the context is
	// in this bucket.
	Variation int
	// Weight is the proportion of contexts that should go into this bucket, as
	// an integer from 0 to 100000.
	Weight int
	// Untracked means that contexts allocated to this variation should not be
	// counted as part of an experiment.
	Untracked bool
}
