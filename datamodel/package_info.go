// Package datamodel contains the representations of feature flags and segments.
//
// Items are immutable after construction. Flag and segment data normally comes
// from an update source in JSON form and is deserialized with the functions in
// this package, which also precompute derived evaluation artifacts (see
// PreprocessFlag and PreprocessSegment) and which exclude those artifacts from
// any serialized form by construction: the artifacts live in separate unexported
// derived-value structs, not in serializable fields.
package datamodel
