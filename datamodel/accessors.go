package datamodel

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldreason"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// The methods in this file expose the precomputed evaluation artifacts. They
// assume PreprocessFlag or PreprocessSegment has been called; flags and
// segments produced by this package's deserializers always satisfy that.
//
// Any variation index outside the flag's Variations list yields a
// malformed-flag error result, never a panic.

// OffResult returns the result of evaluating the flag with targeting off.
func (f *FeatureFlag) OffResult() ldreason.EvaluationDetail {
	return f.preprocessed.OffResult
}

// FallthroughResult returns the result of the fallthrough producing the given
// variation index.
func (f *FeatureFlag) FallthroughResult(variationIndex int, inExperiment bool) ldreason.EvaluationDetail {
	return f.preprocessed.FallthroughResults.forIndex(variationIndex, inExperiment)
}

// FailedResult returns the result of evaluating the owning flag when this
// prerequisite is not met.
func (p *Prerequisite) FailedResult() ldreason.EvaluationDetail {
	return p.preprocessed.FailedResult
}

// MatchResult returns the result of a context matching this target.
func (t *Target) MatchResult() ldreason.EvaluationDetail {
	return t.preprocessed.MatchResult
}

// HasKey tests whether the given context key appears in the target's values.
func (t *Target) HasKey(key string) bool {
	if t.preprocessed.valuesMap != nil {
		_, found := t.preprocessed.valuesMap[key]
		return found
	}
	for _, v := range t.Values {
		if v == key {
			return true
		}
	}
	return false
}

// MatchResult returns the result of this rule producing the given variation
// index.
func (r *FlagRule) MatchResult(variationIndex int, inExperiment bool) ldreason.EvaluationDetail {
	return r.preprocessed.AllPossibleResults.forIndex(variationIndex, inExperiment)
}

func (p precomputedVariationResults) forIndex(variationIndex int, inExperiment bool) ldreason.EvaluationDetail {
	list := p.Regular
	if inExperiment {
		list = p.InExperiment
	}
	if variationIndex < 0 || variationIndex >= len(list) {
		return ldreason.NewEvaluationDetailForError(ldreason.EvalErrorMalformedFlag, ldvalue.Null())
	}
	return list[variationIndex]
}

// IncludesKey tests whether the given context key is in the segment's
// top-level include list.
func (s *Segment) IncludesKey(key string) bool {
	return stringSetOrSliceContains(s.preprocessed.includeMap, s.Included, key)
}

// ExcludesKey tests whether the given context key is in the segment's
// top-level exclude list.
func (s *Segment) ExcludesKey(key string) bool {
	return stringSetOrSliceContains(s.preprocessed.excludeMap, s.Excluded, key)
}

// HasKey tests whether the given context key appears in the target's values.
func (t *SegmentTarget) HasKey(key string) bool {
	return stringSetOrSliceContains(t.preprocessed.valuesMap, t.Values, key)
}

func stringSetOrSliceContains(set map[string]struct{}, slice []string, key string) bool {
	if set != nil {
		_, found := set[key]
		return found
	}
	for _, v := range slice {
		if v == key {
			return true
		}
	}
	return false
}
