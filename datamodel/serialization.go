package datamodel

import (
	"github.com/launchdarkly/go-jsonstream/v3/jreader"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/launchdarkly/go-sdk-common/v3/ldattr"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// This file implements the JSON encoding of flags and segments. It is written
// against the streaming reader/writer API rather than encoding/json so that
// the encoding is defined entirely here: only the fields named in this file
// exist on the wire, and the derived evaluation artifacts can never leak into
// a serialization because no code path touches them.

// UnmarshalFeatureFlag parses a feature flag from its JSON representation and
// computes its derived evaluation artifacts.
func UnmarshalFeatureFlag(data []byte) (FeatureFlag, error) {
	var item FeatureFlag
	r := jreader.NewReader(data)
	readFeatureFlag(&r, &item)
	if err := r.Error(); err != nil {
		return FeatureFlag{}, err
	}
	PreprocessFlag(&item)
	return item, nil
}

// UnmarshalSegment parses a segment from its JSON representation and computes
// its derived lookup maps.
func UnmarshalSegment(data []byte) (Segment, error) {
	var item Segment
	r := jreader.NewReader(data)
	readSegment(&r, &item)
	if err := r.Error(); err != nil {
		return Segment{}, err
	}
	PreprocessSegment(&item)
	return item, nil
}

// MarshalFeatureFlag returns the JSON representation of a feature flag.
func MarshalFeatureFlag(item FeatureFlag) ([]byte, error) {
	w := jwriter.NewWriter()
	MarshalFeatureFlagToJSONWriter(item, &w)
	return w.Bytes(), w.Error()
}

// MarshalSegment returns the JSON representation of a segment.
func MarshalSegment(item Segment) ([]byte, error) {
	w := jwriter.NewWriter()
	MarshalSegmentToJSONWriter(item, &w)
	return w.Bytes(), w.Error()
}

// MarshalFeatureFlagToJSONWriter writes a feature flag to an existing Writer,
// for callers that are embedding flag data in a larger document.
func MarshalFeatureFlagToJSONWriter(item FeatureFlag, w *jwriter.Writer) {
	obj := w.Object()
	obj.Name("key").String(item.Key)
	obj.Name("on").Bool(item.On)

	prereqsArr := obj.Name("prerequisites").Array()
	for _, p := range item.Prerequisites {
		prereqObj := prereqsArr.Object()
		prereqObj.Name("key").String(p.Key)
		prereqObj.Name("variation").Int(p.Variation)
		prereqObj.End()
	}
	prereqsArr.End()

	writeTargets(&obj, "targets", item.Targets)
	writeTargets(&obj, "contextTargets", item.ContextTargets)

	rulesArr := obj.Name("rules").Array()
	for _, rule := range item.Rules {
		ruleObj := rulesArr.Object()
		ruleObj.Name("id").String(rule.ID)
		writeVariationOrRollout(&ruleObj, rule.VariationOrRollout)
		writeClauses(w, &ruleObj, rule.Clauses)
		ruleObj.End()
	}
	rulesArr.End()

	fallthroughObj := obj.Name("fallthrough").Object()
	writeVariationOrRollout(&fallthroughObj, item.Fallthrough)
	fallthroughObj.End()

	item.OffVariation.WriteToJSONWriter(obj.Maybe("offVariation", item.OffVariation.IsDefined()))

	variationsArr := obj.Name("variations").Array()
	for _, v := range item.Variations {
		v.WriteToJSONWriter(w)
	}
	variationsArr.End()

	obj.Name("salt").String(item.Salt)
	obj.Name("version").Int(item.Version)
	obj.Name("deleted").Bool(item.Deleted)
	obj.End()
}

// MarshalSegmentToJSONWriter writes a segment to an existing Writer, for
// callers that are embedding segment data in a larger document.
func MarshalSegmentToJSONWriter(item Segment, w *jwriter.Writer) {
	obj := w.Object()
	obj.Name("key").String(item.Key)
	writeStringArray(&obj, "included", item.Included)
	writeStringArray(&obj, "excluded", item.Excluded)
	writeSegmentTargets(&obj, "includedContexts", item.IncludedContexts)
	writeSegmentTargets(&obj, "excludedContexts", item.ExcludedContexts)
	obj.Name("salt").String(item.Salt)

	rulesArr := obj.Name("rules").Array()
	for _, rule := range item.Rules {
		ruleObj := rulesArr.Object()
		ruleObj.Name("id").String(rule.ID)
		writeClauses(w, &ruleObj, rule.Clauses)
		rule.Weight.WriteToJSONWriter(ruleObj.Maybe("weight", rule.Weight.IsDefined()))
		writeAttrRef(&ruleObj, "bucketBy", rule.BucketBy)
		if rule.RolloutContextKind != "" {
			ruleObj.Name("rolloutContextKind").String(string(rule.RolloutContextKind))
		}
		ruleObj.End()
	}
	rulesArr.End()

	if item.Unbounded {
		obj.Name("unbounded").Bool(true)
	}
	if item.UnboundedContextKind != "" {
		obj.Name("unboundedContextKind").String(string(item.UnboundedContextKind))
	}
	item.Generation.WriteToJSONWriter(obj.Maybe("generation", item.Generation.IsDefined()))
	obj.Name("version").Int(item.Version)
	obj.Name("deleted").Bool(item.Deleted)
	obj.End()
}

func writeTargets(obj *jwriter.ObjectState, name string, targets []Target) {
	arr := obj.Name(name).Array()
	for _, t := range targets {
		tObj := arr.Object()
		if t.ContextKind != "" {
			tObj.Name("contextKind").String(string(t.ContextKind))
		}
		writeStringArray(&tObj, "values", t.Values)
		tObj.Name("variation").Int(t.Variation)
		tObj.End()
	}
	arr.End()
}

func writeSegmentTargets(obj *jwriter.ObjectState, name string, targets []SegmentTarget) {
	arr := obj.Name(name).Array()
	for _, t := range targets {
		tObj := arr.Object()
		if t.ContextKind != "" {
			tObj.Name("contextKind").String(string(t.ContextKind))
		}
		writeStringArray(&tObj, "values", t.Values)
		tObj.End()
	}
	arr.End()
}

func writeVariationOrRollout(obj *jwriter.ObjectState, vr VariationOrRollout) {
	vr.Variation.WriteToJSONWriter(obj.Maybe("variation", vr.Variation.IsDefined()))
	if len(vr.Rollout.Variations) > 0 {
		rolloutObj := obj.Name("rollout").Object()
		if vr.Rollout.Kind != "" {
			rolloutObj.Name("kind").String(string(vr.Rollout.Kind))
		}
		if vr.Rollout.ContextKind != "" {
			rolloutObj.Name("contextKind").String(string(vr.Rollout.ContextKind))
		}
		wvArr := rolloutObj.Name("variations").Array()
		for _, wv := range vr.Rollout.Variations {
			wvObj := wvArr.Object()
			wvObj.Name("variation").Int(wv.Variation)
			wvObj.Name("weight").Int(wv.Weight)
			if wv.Untracked {
				wvObj.Name("untracked").Bool(true)
			}
			wvObj.End()
		}
		wvArr.End()
		writeAttrRef(&rolloutObj, "bucketBy", vr.Rollout.BucketBy)
		vr.Rollout.Seed.WriteToJSONWriter(rolloutObj.Maybe("seed", vr.Rollout.Seed.IsDefined()))
		rolloutObj.End()
	}
}

func writeClauses(w *jwriter.Writer, obj *jwriter.ObjectState, clauses []Clause) {
	arr := obj.Name("clauses").Array()
	for _, c := range clauses {
		cObj := arr.Object()
		if c.ContextKind != "" {
			cObj.Name("contextKind").String(string(c.ContextKind))
		}
		writeAttrRef(&cObj, "attribute", c.Attribute)
		cObj.Name("op").String(string(c.Op))
		valuesArr := cObj.Name("values").Array()
		for _, v := range c.Values {
			v.WriteToJSONWriter(w)
		}
		valuesArr.End()
		cObj.Name("negate").Bool(c.Negate)
		cObj.End()
	}
	arr.End()
}

func writeAttrRef(obj *jwriter.ObjectState, name string, ref ldattr.Ref) {
	if ref.IsDefined() {
		obj.Name(name).String(ref.String())
	}
}

func writeStringArray(obj *jwriter.ObjectState, name string, values []string) {
	arr := obj.Name(name).Array()
	for _, v := range values {
		arr.String(v)
	}
	arr.End()
}

func readFeatureFlag(r *jreader.Reader, item *FeatureFlag) {
	for obj := r.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "key":
			item.Key = r.String()
		case "on":
			item.On = r.Bool()
		case "prerequisites":
			for arr := r.Array(); arr.Next(); {
				var p Prerequisite
				for pObj := r.Object(); pObj.Next(); {
					switch string(pObj.Name()) {
					case "key":
						p.Key = r.String()
					case "variation":
						p.Variation = r.Int()
					default:
						r.SkipValue()
					}
				}
				item.Prerequisites = append(item.Prerequisites, p)
			}
		case "targets":
			item.Targets = readTargets(r)
		case "contextTargets":
			item.ContextTargets = readTargets(r)
		case "rules":
			for arr := r.Array(); arr.Next(); {
				var rule FlagRule
				for ruleObj := r.Object(); ruleObj.Next(); {
					switch string(ruleObj.Name()) {
					case "id":
						rule.ID = r.String()
					case "variation":
						rule.Variation.ReadFromJSONReader(r)
					case "rollout":
						rule.Rollout = readRollout(r)
					case "clauses":
						rule.Clauses = readClauses(r)
					default:
						r.SkipValue()
					}
				}
				item.Rules = append(item.Rules, rule)
			}
		case "fallthrough":
			for ftObj := r.Object(); ftObj.Next(); {
				switch string(ftObj.Name()) {
				case "variation":
					item.Fallthrough.Variation.ReadFromJSONReader(r)
				case "rollout":
					item.Fallthrough.Rollout = readRollout(r)
				default:
					r.SkipValue()
				}
			}
		case "offVariation":
			item.OffVariation.ReadFromJSONReader(r)
		case "variations":
			for arr := r.Array(); arr.Next(); {
				var v ldvalue.Value
				v.ReadFromJSONReader(r)
				item.Variations = append(item.Variations, v)
			}
		case "salt":
			item.Salt = r.String()
		case "version":
			item.Version = r.Int()
		case "deleted":
			item.Deleted = r.Bool()
		default:
			r.SkipValue()
		}
	}
}

func readSegment(r *jreader.Reader, item *Segment) {
	for obj := r.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "key":
			item.Key = r.String()
		case "included":
			item.Included = readStringArray(r)
		case "excluded":
			item.Excluded = readStringArray(r)
		case "includedContexts":
			item.IncludedContexts = readSegmentTargets(r)
		case "excludedContexts":
			item.ExcludedContexts = readSegmentTargets(r)
		case "salt":
			item.Salt = r.String()
		case "rules":
			for arr := r.Array(); arr.Next(); {
				var rule SegmentRule
				for ruleObj := r.Object(); ruleObj.Next(); {
					switch string(ruleObj.Name()) {
					case "id":
						rule.ID = r.String()
					case "clauses":
						rule.Clauses = readClauses(r)
					case "weight":
						rule.Weight.ReadFromJSONReader(r)
					case "bucketBy":
						rule.BucketBy = readAttrRef(r)
					case "rolloutContextKind":
						rule.RolloutContextKind = ldcontext.Kind(r.String())
					default:
						r.SkipValue()
					}
				}
				item.Rules = append(item.Rules, rule)
			}
		case "unbounded":
			item.Unbounded = r.Bool()
		case "unboundedContextKind":
			item.UnboundedContextKind = ldcontext.Kind(r.String())
		case "generation":
			item.Generation.ReadFromJSONReader(r)
		case "version":
			item.Version = r.Int()
		case "deleted":
			item.Deleted = r.Bool()
		default:
			r.SkipValue()
		}
	}
}

func readTargets(r *jreader.Reader) []Target {
	var ret []Target
	for arr := r.Array(); arr.Next(); {
		var t Target
		for obj := r.Object(); obj.Next(); {
			switch string(obj.Name()) {
			case "contextKind":
				t.ContextKind = ldcontext.Kind(r.String())
			case "values":
				t.Values = readStringArray(r)
			case "variation":
				t.Variation = r.Int()
			default:
				r.SkipValue()
			}
		}
		ret = append(ret, t)
	}
	return ret
}

func readSegmentTargets(r *jreader.Reader) []SegmentTarget {
	var ret []SegmentTarget
	for arr := r.Array(); arr.Next(); {
		var t SegmentTarget
		for obj := r.Object(); obj.Next(); {
			switch string(obj.Name()) {
			case "contextKind":
				t.ContextKind = ldcontext.Kind(r.String())
			case "values":
				t.Values = readStringArray(r)
			default:
				r.SkipValue()
			}
		}
		ret = append(ret, t)
	}
	return ret
}

func readRollout(r *jreader.Reader) Rollout {
	var ret Rollout
	for obj := r.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "kind":
			ret.Kind = RolloutKind(r.String())
		case "contextKind":
			ret.ContextKind = ldcontext.Kind(r.String())
		case "variations":
			for arr := r.Array(); arr.Next(); {
				var wv WeightedVariation
				for wvObj := r.Object(); wvObj.Next(); {
					switch string(wvObj.Name()) {
					case "variation":
						wv.Variation = r.Int()
					case "weight":
						wv.Weight = r.Int()
					case "untracked":
						wv.Untracked = r.Bool()
					default:
						r.SkipValue()
					}
				}
				ret.Variations = append(ret.Variations, wv)
			}
		case "bucketBy":
			ret.BucketBy = readAttrRef(r)
		case "seed":
			ret.Seed.ReadFromJSONReader(r)
		default:
			r.SkipValue()
		}
	}
	return ret
}

func readClauses(r *jreader.Reader) []Clause {
	var ret []Clause
	for arr := r.Array(); arr.Next(); {
		var c Clause
		for obj := r.Object(); obj.Next(); {
			switch string(obj.Name()) {
			case "contextKind":
				c.ContextKind = ldcontext.Kind(r.String())
			case "attribute":
				c.Attribute = readAttrRef(r)
			case "op":
				c.Op = Operator(r.String())
			case "values":
				for valuesArr := r.Array(); valuesArr.Next(); {
					var v ldvalue.Value
					v.ReadFromJSONReader(r)
					c.Values = append(c.Values, v)
				}
			case "negate":
				c.Negate = r.Bool()
			default:
				r.SkipValue()
			}
		}
		ret = append(ret, c)
	}
	return ret
}

func readAttrRef(r *jreader.Reader) ldattr.Ref {
	s := r.String()
	if s == "" {
		return ldattr.Ref{}
	}
	return ldattr.NewRef(s)
}

func readStringArray(r *jreader.Reader) []string {
	var ret []string
	for arr := r.ArrayOrNull(); arr.Next(); {
		ret = append(ret, r.String())
	}
	return ret
}
