package datamodel

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldattr"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Operator describes the type of test performed by a clause.
type Operator string

const (
	// OperatorIn matches a context attribute exactly against any of the clause values.
	OperatorIn Operator = "in"
	// OperatorEndsWith matches a string attribute that ends with any clause value.
	OperatorEndsWith Operator = "endsWith"
	// OperatorStartsWith matches a string attribute that starts with any clause value.
	OperatorStartsWith Operator = "startsWith"
	// OperatorMatches matches a string attribute against a regular expression.
	OperatorMatches Operator = "matches"
	// OperatorContains matches a string attribute that contains any clause value.
	OperatorContains Operator = "contains"
	// OperatorLessThan matches a numeric attribute less than any clause value.
	OperatorLessThan Operator = "lessThan"
	// OperatorLessThanOrEqual matches a numeric attribute less than or equal to
	// any clause value.
	OperatorLessThanOrEqual Operator = "lessThanOrEqual"
	// OperatorGreaterThan matches a numeric attribute greater than any clause value.
	OperatorGreaterThan Operator = "greaterThan"
	// OperatorGreaterThanOrEqual matches a numeric attribute greater than or
	// equal to any clause value.
	OperatorGreaterThanOrEqual Operator = "greaterThanOrEqual"
	// OperatorBefore matches a date/time attribute earlier than any clause value.
	OperatorBefore Operator = "before"
	// OperatorAfter matches a date/time attribute later than any clause value.
	OperatorAfter Operator = "after"
	// OperatorSegmentMatch matches a context that is a member of the segment
	// whose key is the clause value. This is the operator that creates
	// flag→segment and segment→segment dependency edges.
	OperatorSegmentMatch Operator = "segmentMatch"
	// OperatorSemVerEqual matches a semantic-version attribute equal to any clause value.
	OperatorSemVerEqual Operator = "semVerEqual"
	// OperatorSemVerLessThan matches a semantic-version attribute less than any
	// clause value.
	OperatorSemVerLessThan Operator = "semVerLessThan"
	// OperatorSemVerGreaterThan matches a semantic-version attribute greater
	// than any clause value.
	OperatorSemVerGreaterThan Operator = "semVerGreaterThan"
)

// Clause describes an individual test within a flag rule or segment rule.
type Clause struct {
	// ContextKind is the kind of context the clause applies to. An empty value
	// means the default kind; in that case, if Attribute is "kind", the clause
	// instead matches against the kinds present in the evaluation context.
	ContextKind ldcontext.Kind
	// Attribute is the context attribute being tested. This is required for all
	// operators except OperatorSegmentMatch. An empty or syntactically invalid
	// reference is a data inconsistency: it is reported at construction time
	// (see FlagDataInconsistencies) and causes the clause to be treated as a
	// malformed-flag condition at evaluation time, never a crash.
	Attribute ldattr.Ref
	// Op is the type of test to perform.
	Op Operator
	// Values is the list of values to compare the attribute against, ORed: the
	// clause matches if the attribute matches any of them. For
	// OperatorSegmentMatch there should be a single string value, the segment key.
	Values []ldvalue.Value
	// Negate is true if the result of the test should be inverted. Negation
	// does not apply when the test is skipped because the context has no value
	// for the attribute.
	Negate bool
}
