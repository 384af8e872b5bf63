package datamodel

import "fmt"

// FlagDataInconsistencies checks a flag for internal inconsistencies that the
// deserializer deliberately tolerates, such as a variation index pointing
// outside the variations list. These do not prevent storing the flag; an
// affected flag simply produces a malformed-flag error if the bad path is
// reached during evaluation. Callers normally log the returned problems as
// warnings.
func FlagDataInconsistencies(f FeatureFlag) []error {
	var ret []error
	addBadIndex := func(desc string, index int) {
		ret = append(ret, fmt.Errorf("%s has variation index %d but there are only %d variations",
			desc, index, len(f.Variations)))
	}
	if f.OffVariation.IsDefined() {
		if i := f.OffVariation.IntValue(); i < 0 || i >= len(f.Variations) {
			addBadIndex("off variation", i)
		}
	}
	if f.Fallthrough.Variation.IsDefined() {
		if i := f.Fallthrough.Variation.IntValue(); i < 0 || i >= len(f.Variations) {
			addBadIndex("fallthrough", i)
		}
	}
	for _, p := range f.Prerequisites {
		if p.Variation < 0 || p.Variation >= len(f.Variations) {
			addBadIndex(fmt.Sprintf("prerequisite %q", p.Key), p.Variation)
		}
	}
	for i, t := range f.Targets {
		if t.Variation < 0 || t.Variation >= len(f.Variations) {
			addBadIndex(fmt.Sprintf("target %d", i), t.Variation)
		}
	}
	for i, t := range f.ContextTargets {
		if t.Variation < 0 || t.Variation >= len(f.Variations) {
			addBadIndex(fmt.Sprintf("context target %d", i), t.Variation)
		}
	}
	for i, r := range f.Rules {
		if r.Variation.IsDefined() {
			if vi := r.Variation.IntValue(); vi < 0 || vi >= len(f.Variations) {
				addBadIndex(fmt.Sprintf("rule %d", i), vi)
			}
		}
		for j, c := range r.Clauses {
			if err := clauseInconsistency(c); err != nil {
				ret = append(ret, fmt.Errorf("rule %d clause %d: %w", i, j, err))
			}
		}
	}
	return ret
}

// SegmentDataInconsistencies is the segment counterpart of
// FlagDataInconsistencies.
func SegmentDataInconsistencies(s Segment) []error {
	var ret []error
	for i, r := range s.Rules {
		for j, c := range r.Clauses {
			if err := clauseInconsistency(c); err != nil {
				ret = append(ret, fmt.Errorf("rule %d clause %d: %w", i, j, err))
			}
		}
	}
	return ret
}

func clauseInconsistency(c Clause) error {
	if c.Op == OperatorSegmentMatch {
		return nil // the attribute is unused for this operator
	}
	if !c.Attribute.IsDefined() {
		return fmt.Errorf("clause with operator %q has no attribute", c.Op)
	}
	if err := c.Attribute.Err(); err != nil {
		return fmt.Errorf("invalid attribute reference %q: %w", c.Attribute.String(), err)
	}
	return nil
}
