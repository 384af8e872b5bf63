package datasystem

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/go-datasystem/subsystems/ldstoretypes"
)

func TestChangeSetBuilder(t *testing.T) {
	b := NewChangeSetBuilder()
	b.Start(IntentTransferFull)
	b.AddPut(ldstoretypes.DataKindFeatures, "f1", 1, json.RawMessage(`{"key":"f1","version":1}`))
	b.AddDelete(ldstoretypes.DataKindSegments, "s1", 2)

	selector := NewSelector("token", 10)
	cs, err := b.Finish(selector)
	require.NoError(t, err)

	assert.Equal(t, IntentTransferFull, cs.IntentCode())
	assert.Equal(t, selector, cs.Selector())
	require.Len(t, cs.Changes(), 2)
	assert.Equal(t, ChangeActionPut, cs.Changes()[0].Action)
	assert.Equal(t, "f1", cs.Changes()[0].Key)
	assert.Equal(t, ChangeActionDelete, cs.Changes()[1].Action)
	assert.Equal(t, ldstoretypes.DataKindSegments, cs.Changes()[1].Kind)
}

func TestChangeSetBuilderFinishRequiresStart(t *testing.T) {
	b := NewChangeSetBuilder()
	_, err := b.Finish(NoSelector())
	assert.Error(t, err)
}

func TestChangeSetBuilderResetsAfterFinish(t *testing.T) {
	b := NewChangeSetBuilder()
	b.Start(IntentTransferChanges)
	b.AddDelete(ldstoretypes.DataKindFeatures, "f1", 1)
	_, err := b.Finish(NoSelector())
	require.NoError(t, err)

	_, err = b.Finish(NoSelector())
	assert.Error(t, err)
}

func TestChangeSetBuilderStartDiscardsPriorChanges(t *testing.T) {
	b := NewChangeSetBuilder()
	b.Start(IntentTransferFull)
	b.AddDelete(ldstoretypes.DataKindFeatures, "f1", 1)
	b.Start(IntentTransferChanges)

	cs, err := b.Finish(NoSelector())
	require.NoError(t, err)
	assert.Equal(t, IntentTransferChanges, cs.IntentCode())
	assert.Empty(t, cs.Changes())
}

func TestNoChangesChangeSet(t *testing.T) {
	selector := NewSelector("token", 3)
	cs := NewNoChangesChangeSet(selector)
	assert.Equal(t, IntentNone, cs.IntentCode())
	assert.Empty(t, cs.Changes())
	assert.Equal(t, selector, cs.Selector())
}

func TestSelector(t *testing.T) {
	assert.False(t, NoSelector().IsDefined())

	s := NewSelector("abc", 12)
	assert.True(t, s.IsDefined())
	assert.Equal(t, "abc", s.State())
	assert.Equal(t, 12, s.Version())
}
