package datasystem

import (
	"encoding/json"
	"errors"

	"github.com/launchdarkly/go-datasystem/subsystems/ldstoretypes"
)

// IntentCode declares what an update source wants to achieve with a ChangeSet.
type IntentCode string

const (
	// IntentTransferFull means the ChangeSet is a complete data set that
	// replaces all current data.
	IntentTransferFull IntentCode = "xfer-full"
	// IntentTransferChanges means the ChangeSet is a delta to be merged over
	// the current data.
	IntentTransferChanges IntentCode = "xfer-changes"
	// IntentNone means the source has nothing to transfer; the current data is
	// already up to date.
	IntentNone IntentCode = "none"
)

// ChangeAction is the type of operation represented by a single Change.
type ChangeAction string

const (
	// ChangeActionPut adds or replaces an item.
	ChangeActionPut ChangeAction = "put"
	// ChangeActionDelete soft-deletes an item, leaving a tombstone with the
	// deletion version.
	ChangeActionDelete ChangeAction = "delete"
)

// Change is a single versioned operation on one item.
type Change struct {
	// Kind is the item's data kind.
	Kind ldstoretypes.DataKind
	// Key is the item's unique key within its kind.
	Key string
	// Version is the item's version as assigned by the update source.
	Version int
	// Action says whether this is a put or a delete.
	Action ChangeAction
	// Object is the JSON representation of the item. It is unset for deletes.
	Object json.RawMessage
}

// ChangeSet is an ordered batch of Changes tagged with the source's intent
// and the Selector that represents the state of the data after the batch is
// applied. It is immutable once built.
type ChangeSet struct {
	intentCode IntentCode
	changes    []Change
	selector   Selector
}

// IntentCode returns the intent the source declared for this batch.
func (c *ChangeSet) IntentCode() IntentCode { return c.intentCode }

// Changes returns the batch's changes in the order they must be applied.
func (c *ChangeSet) Changes() []Change { return c.changes }

// Selector returns the cursor identifying the data state this batch leads to.
func (c *ChangeSet) Selector() Selector { return c.selector }

// NewNoChangesChangeSet returns a ChangeSet meaning "you are already up to
// date as of this selector".
func NewNoChangesChangeSet(selector Selector) *ChangeSet {
	return &ChangeSet{intentCode: IntentNone, selector: selector}
}

// ChangeSetBuilder accumulates changes between a protocol's start and finish
// events.
type ChangeSetBuilder struct {
	intentCode IntentCode
	changes    []Change
	started    bool
}

// NewChangeSetBuilder creates an empty ChangeSetBuilder.
func NewChangeSetBuilder() *ChangeSetBuilder {
	return &ChangeSetBuilder{}
}

// Start begins a new batch with the given intent, discarding any changes
// accumulated so far.
func (b *ChangeSetBuilder) Start(intent IntentCode) {
	b.intentCode = intent
	b.changes = nil
	b.started = true
}

// AddPut adds an add-or-replace operation to the batch.
func (b *ChangeSetBuilder) AddPut(
	kind ldstoretypes.DataKind,
	key string,
	version int,
	object json.RawMessage,
) {
	b.changes = append(b.changes, Change{
		Kind:    kind,
		Key:     key,
		Version: version,
		Action:  ChangeActionPut,
		Object:  object,
	})
}

// AddDelete adds a soft-delete operation to the batch.
func (b *ChangeSetBuilder) AddDelete(kind ldstoretypes.DataKind, key string, version int) {
	b.changes = append(b.changes, Change{
		Kind:    kind,
		Key:     key,
		Version: version,
		Action:  ChangeActionDelete,
	})
}

// Finish seals the batch with the selector that the data will be at once the
// batch is applied, returning the completed ChangeSet and resetting the
// builder. It is an error to finish a batch that was never started.
func (b *ChangeSetBuilder) Finish(selector Selector) (*ChangeSet, error) {
	if !b.started {
		return nil, errors.New("changeset: finish called before start")
	}
	changeSet := &ChangeSet{
		intentCode: b.intentCode,
		changes:    b.changes,
		selector:   selector,
	}
	b.intentCode = ""
	b.changes = nil
	b.started = false
	return changeSet, nil
}

// Selector is an opaque cursor identifying a point in the upstream data
// sequence, used to resume synchronization without re-fetching everything.
// The zero value is "no selector": no data state has been identified yet.
type Selector struct {
	state   string
	version int
}

// NoSelector returns the zero Selector.
func NoSelector() Selector { return Selector{} }

// NewSelector creates a Selector from a state token and a version.
func NewSelector(state string, version int) Selector {
	return Selector{state: state, version: version}
}

// IsDefined returns true unless this is the zero Selector.
func (s Selector) IsDefined() bool { return s != NoSelector() }

// State returns the opaque state token.
func (s Selector) State() string { return s.state }

// Version returns the numeric version of the cursor.
func (s Selector) Version() int { return s.version }

// Basis is the starting state of the data: a full-transfer ChangeSet plus
// metadata about how to treat it.
type Basis struct {
	// ChangeSet contains the data. Its intent should be IntentTransferFull.
	ChangeSet *ChangeSet
	// Persist is true if this data should be mirrored to the persistent store,
	// when one is configured and writable. An initializer that itself read the
	// data out of the persistent store sets this to false.
	Persist bool
	// EnvironmentID optionally identifies the environment the data belongs to.
	EnvironmentID string
}
