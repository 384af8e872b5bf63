package datamodel

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldreason"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// The types in this file hold derived data that is computed once, when a flag
// or segment is constructed, and never mutated afterward. They exist because
// building an evaluation result is template-like work that would otherwise be
// repeated on every request; caching one result per flag version amortizes it.
//
// None of this data ever appears in a serialized flag or segment: it lives in
// separate unexported structs that the serialization code cannot see.

type flagPreprocessedData struct {
	// OffResult is the complete result of evaluating this flag with targeting
	// turned off.
	OffResult ldreason.EvaluationDetail
	// FallthroughResults contains a result for every variation index that the
	// fallthrough could produce.
	FallthroughResults precomputedVariationResults
}

// precomputedVariationResults is a pair of result lists indexed by variation:
// one with the plain reason, one with the "in experiment" variant of the same
// reason.
type precomputedVariationResults struct {
	Regular      []ldreason.EvaluationDetail
	InExperiment []ldreason.EvaluationDetail
}

type rulePreprocessedData struct {
	// AllPossibleResults contains a result for every variation index that this
	// rule could produce, with a rule-match reason identifying the rule.
	AllPossibleResults precomputedVariationResults
}

type prerequisitePreprocessedData struct {
	// FailedResult is the complete result of evaluating the owning flag when
	// this prerequisite is not met: the flag's off value, with a
	// prerequisite-failed reason naming the prerequisite flag.
	FailedResult ldreason.EvaluationDetail
}

type targetPreprocessedData struct {
	// valuesMap supports constant-time membership tests on the target's keys.
	valuesMap map[string]struct{}
	// MatchResult is the complete result of a context matching this target.
	MatchResult ldreason.EvaluationDetail
}

type segmentPreprocessedData struct {
	includeMap map[string]struct{}
	excludeMap map[string]struct{}
}

// PreprocessFlag computes the derived evaluation artifacts for a flag.
//
// This is called automatically when a flag is deserialized. If you construct a
// FeatureFlag by any other means, call PreprocessFlag exactly once before
// making it visible to any other goroutine; the method itself is not safe for
// concurrent use.
func PreprocessFlag(f *FeatureFlag) {
	f.preprocessed = flagPreprocessedData{
		OffResult:          makeOffResult(f),
		FallthroughResults: makeVariationResults(f, ldreason.NewEvalReasonFallthrough(), ldreason.NewEvalReasonFallthroughExperiment(true)),
	}
	for i := range f.Prerequisites {
		f.Prerequisites[i].preprocessed = prerequisitePreprocessedData{
			FailedResult: makePrerequisiteFailedResult(f, f.Prerequisites[i].Key),
		}
	}
	for i := range f.Targets {
		f.Targets[i].preprocessed = preprocessTarget(f, &f.Targets[i])
	}
	for i := range f.ContextTargets {
		f.ContextTargets[i].preprocessed = preprocessTarget(f, &f.ContextTargets[i])
	}
	for i := range f.Rules {
		rule := &f.Rules[i]
		rule.preprocessed = rulePreprocessedData{
			AllPossibleResults: makeVariationResults(f,
				ldreason.NewEvalReasonRuleMatch(i, rule.ID),
				ldreason.NewEvalReasonRuleMatchExperiment(i, rule.ID, true)),
		}
	}
}

// PreprocessSegment computes the derived lookup maps for a segment. The same
// usage rules apply as for PreprocessFlag.
func PreprocessSegment(s *Segment) {
	p := segmentPreprocessedData{}
	if len(s.Included) > 0 {
		p.includeMap = makeStringSet(s.Included)
	}
	if len(s.Excluded) > 0 {
		p.excludeMap = makeStringSet(s.Excluded)
	}
	s.preprocessed = p

	for i := range s.IncludedContexts {
		s.IncludedContexts[i].preprocessed = targetPreprocessedData{
			valuesMap: makeStringSet(s.IncludedContexts[i].Values),
		}
	}
	for i := range s.ExcludedContexts {
		s.ExcludedContexts[i].preprocessed = targetPreprocessedData{
			valuesMap: makeStringSet(s.ExcludedContexts[i].Values),
		}
	}
}

func makeVariationResults(
	f *FeatureFlag,
	regularReason ldreason.EvaluationReason,
	inExperimentReason ldreason.EvaluationReason,
) precomputedVariationResults {
	if len(f.Variations) == 0 {
		return precomputedVariationResults{}
	}
	ret := precomputedVariationResults{
		Regular:      make([]ldreason.EvaluationDetail, len(f.Variations)),
		InExperiment: make([]ldreason.EvaluationDetail, len(f.Variations)),
	}
	for i, value := range f.Variations {
		ret.Regular[i] = ldreason.NewEvaluationDetail(value, i, regularReason)
		ret.InExperiment[i] = ldreason.NewEvaluationDetail(value, i, inExperimentReason)
	}
	return ret
}

func makeOffResult(f *FeatureFlag) ldreason.EvaluationDetail {
	return makeResultForOffVariation(f, ldreason.NewEvalReasonOff())
}

func makePrerequisiteFailedResult(f *FeatureFlag, prereqKey string) ldreason.EvaluationDetail {
	return makeResultForOffVariation(f, ldreason.NewEvalReasonPrerequisiteFailed(prereqKey))
}

// makeResultForOffVariation builds the result produced whenever the flag's off
// variation applies. An undefined off variation means a null result; an
// out-of-range index is the malformed-flag case, which surfaces as an
// evaluation error rather than a construction failure.
func makeResultForOffVariation(f *FeatureFlag, reason ldreason.EvaluationReason) ldreason.EvaluationDetail {
	if !f.OffVariation.IsDefined() {
		return ldreason.EvaluationDetail{Value: ldvalue.Null(), Reason: reason}
	}
	index := f.OffVariation.IntValue()
	if index < 0 || index >= len(f.Variations) {
		return ldreason.NewEvaluationDetailForError(ldreason.EvalErrorMalformedFlag, ldvalue.Null())
	}
	return ldreason.NewEvaluationDetail(f.Variations[index], index, reason)
}

func preprocessTarget(f *FeatureFlag, t *Target) targetPreprocessedData {
	ret := targetPreprocessedData{}
	if len(t.Values) > 0 {
		ret.valuesMap = makeStringSet(t.Values)
	}
	if t.Variation < 0 || t.Variation >= len(f.Variations) {
		ret.MatchResult = ldreason.NewEvaluationDetailForError(ldreason.EvalErrorMalformedFlag, ldvalue.Null())
	} else {
		ret.MatchResult = ldreason.NewEvaluationDetail(f.Variations[t.Variation], t.Variation,
			ldreason.NewEvalReasonTargetMatch())
	}
	return ret
}

func makeStringSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}
