package ldstoretypes

// DataKind identifies one of the two kinds of data item the data system stores.
//
// This is deliberately a closed enumeration rather than an open interface: the
// data model has exactly two record kinds, and code that dispatches on kind
// should be able to do so exhaustively. Store implementations should still treat
// kinds generically (as namespaces) rather than special-casing either one.
type DataKind int

const (
	// DataKindFeatures is the DataKind for feature flags.
	DataKindFeatures DataKind = iota
	// DataKindSegments is the DataKind for segments.
	DataKindSegments
)

// Name returns the case-sensitive namespace name for this data kind. These names
// are part of the persisted-state format and must not change: other
// implementations of the same protocol use the same names for interoperability.
func (k DataKind) Name() string {
	switch k {
	case DataKindFeatures:
		return "features"
	case DataKindSegments:
		return "segments"
	default:
		return "unknown"
	}
}

// String returns the same value as Name, for logging.
func (k DataKind) String() string {
	return k.Name()
}

// AllDataKinds returns every supported DataKind. Segments are listed before
// features because segments never depend on flags, so processing collections in
// this order is always safe for stores with item-at-a-time writes.
func AllDataKinds() []DataKind {
	return []DataKind{DataKindSegments, DataKindFeatures}
}
