package datasystem

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"

	"github.com/launchdarkly/go-datasystem/interfaces"
	"github.com/launchdarkly/go-datasystem/internal/datakinds"
	"github.com/launchdarkly/go-datasystem/internal/datastore"
	"github.com/launchdarkly/go-datasystem/sharedtest"
	"github.com/launchdarkly/go-datasystem/subsystems/ldstoretypes"
)

func makeFlagJSON(key string, version int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"key":%q,"version":%d,"on":true,"fallthrough":{"variation":0},"variations":[true,false],"salt":"x"}`,
		key, version))
}

func makeFlagWithSegmentRuleJSON(key string, version int, segmentKey string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"key":%q,"version":%d,"on":true,"fallthrough":{"variation":0},`+
			`"rules":[{"id":"r1","variation":1,"clauses":[{"op":"segmentMatch","values":[%q]}]}],`+
			`"variations":[true,false],"salt":"x"}`,
		key, version, segmentKey))
}

func makeSegmentJSON(key string, version int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"key":%q,"version":%d,"salt":"x"}`, key, version))
}

func makeFullChangeSet(t *testing.T, selector Selector, flags map[string]int) *ChangeSet {
	b := NewChangeSetBuilder()
	b.Start(IntentTransferFull)
	for key, version := range flags {
		b.AddPut(ldstoretypes.DataKindFeatures, key, version, makeFlagJSON(key, version))
	}
	cs, err := b.Finish(selector)
	require.NoError(t, err)
	return cs
}

func requireFlagChangeEvent(t *testing.T, ch <-chan interfaces.FlagChangeEvent) interfaces.FlagChangeEvent {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		require.Fail(t, "timed out waiting for flag change event")
		return interfaces.FlagChangeEvent{}
	}
}

func requireNoFlagChangeEvent(t *testing.T, ch <-chan interfaces.FlagChangeEvent) {
	t.Helper()
	select {
	case e := <-ch:
		require.Fail(t, "received unexpected flag change event", "key: %s", e.Key)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStoreFullTransferInitializesMemoryStore(t *testing.T) {
	store := NewStore(ldlog.NewDisabledLoggers())
	defer store.Close()

	assert.False(t, store.IsInitialized())

	store.Apply(makeFullChangeSet(t, NewSelector("s1", 1), map[string]int{"f1": 1, "f2": 2}), false)

	assert.True(t, store.IsInitialized())
	assert.Equal(t, NewSelector("s1", 1), store.Selector())

	item, err := store.GetActive().Get(ldstoretypes.DataKindFeatures, "f1")
	require.NoError(t, err)
	assert.Equal(t, 1, item.Version)
	require.NotNil(t, item.Item)

	all, err := store.GetActive().GetAll(ldstoretypes.DataKindFeatures)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStoreDeltaLeavesUnmentionedItemsUntouched(t *testing.T) {
	store := NewStore(ldlog.NewDisabledLoggers())
	defer store.Close()

	store.Apply(makeFullChangeSet(t, NewSelector("s1", 1), map[string]int{"f1": 1, "f2": 1}), false)

	b := NewChangeSetBuilder()
	b.Start(IntentTransferChanges)
	b.AddPut(ldstoretypes.DataKindFeatures, "f2", 2, makeFlagJSON("f2", 2))
	cs, err := b.Finish(NewSelector("s2", 2))
	require.NoError(t, err)
	store.Apply(cs, false)

	item, err := store.GetActive().Get(ldstoretypes.DataKindFeatures, "f1")
	require.NoError(t, err)
	assert.Equal(t, 1, item.Version)

	item, err = store.GetActive().Get(ldstoretypes.DataKindFeatures, "f2")
	require.NoError(t, err)
	assert.Equal(t, 2, item.Version)

	assert.Equal(t, NewSelector("s2", 2), store.Selector())
}

func TestStoreDeltaDeleteHidesItem(t *testing.T) {
	store := NewStore(ldlog.NewDisabledLoggers())
	defer store.Close()

	store.Apply(makeFullChangeSet(t, NewSelector("s1", 1), map[string]int{"f1": 1, "f2": 1}), false)

	b := NewChangeSetBuilder()
	b.Start(IntentTransferChanges)
	b.AddDelete(ldstoretypes.DataKindFeatures, "f1", 2)
	cs, err := b.Finish(NewSelector("s2", 2))
	require.NoError(t, err)
	store.Apply(cs, false)

	item, err := store.GetActive().Get(ldstoretypes.DataKindFeatures, "f1")
	require.NoError(t, err)
	assert.Nil(t, item.Item)

	all, err := store.GetActive().GetAll(ldstoretypes.DataKindFeatures)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "f2", all[0].Key)
}

func TestStoreIdenticalFullTransferProducesNoFlagChangeEvents(t *testing.T) {
	store := NewStore(ldlog.NewDisabledLoggers())
	defer store.Close()

	store.Apply(makeFullChangeSet(t, NewSelector("s1", 1), map[string]int{"f1": 1, "f2": 1}), false)

	ch := store.FlagTracker().AddFlagChangeListener()
	defer store.FlagTracker().RemoveFlagChangeListener(ch)

	store.Apply(makeFullChangeSet(t, NewSelector("s2", 2), map[string]int{"f1": 1, "f2": 1}), false)

	requireNoFlagChangeEvent(t, ch)
	assert.Equal(t, NewSelector("s2", 2), store.Selector())
}

func TestStoreFullTransferReportsOnlyChangedFlags(t *testing.T) {
	store := NewStore(ldlog.NewDisabledLoggers())
	defer store.Close()

	store.Apply(makeFullChangeSet(t, NewSelector("s1", 1), map[string]int{"f1": 1, "f2": 1}), false)

	ch := store.FlagTracker().AddFlagChangeListener()
	defer store.FlagTracker().RemoveFlagChangeListener(ch)

	store.Apply(makeFullChangeSet(t, NewSelector("s2", 2), map[string]int{"f1": 1, "f2": 2}), false)

	event := requireFlagChangeEvent(t, ch)
	assert.Equal(t, "f2", event.Key)
	requireNoFlagChangeEvent(t, ch)
}

func TestStoreFullTransferReportsRemovedFlags(t *testing.T) {
	store := NewStore(ldlog.NewDisabledLoggers())
	defer store.Close()

	store.Apply(makeFullChangeSet(t, NewSelector("s1", 1), map[string]int{"f1": 1, "f2": 1}), false)

	ch := store.FlagTracker().AddFlagChangeListener()
	defer store.FlagTracker().RemoveFlagChangeListener(ch)

	store.Apply(makeFullChangeSet(t, NewSelector("s2", 2), map[string]int{"f1": 1}), false)

	event := requireFlagChangeEvent(t, ch)
	assert.Equal(t, "f2", event.Key)
}

func TestStoreSegmentUpdateNotifiesDependentFlags(t *testing.T) {
	store := NewStore(ldlog.NewDisabledLoggers())
	defer store.Close()

	b := NewChangeSetBuilder()
	b.Start(IntentTransferFull)
	b.AddPut(ldstoretypes.DataKindFeatures, "f1", 1, makeFlagWithSegmentRuleJSON("f1", 1, "s1"))
	b.AddPut(ldstoretypes.DataKindFeatures, "f2", 1, makeFlagJSON("f2", 1))
	b.AddPut(ldstoretypes.DataKindSegments, "s1", 1, makeSegmentJSON("s1", 1))
	cs, err := b.Finish(NewSelector("s1", 1))
	require.NoError(t, err)
	store.Apply(cs, false)

	ch := store.FlagTracker().AddFlagChangeListener()
	defer store.FlagTracker().RemoveFlagChangeListener(ch)

	b.Start(IntentTransferChanges)
	b.AddPut(ldstoretypes.DataKindSegments, "s1", 2, makeSegmentJSON("s1", 2))
	cs, err = b.Finish(NewSelector("s2", 2))
	require.NoError(t, err)
	store.Apply(cs, false)

	event := requireFlagChangeEvent(t, ch)
	assert.Equal(t, "f1", event.Key)
	requireNoFlagChangeEvent(t, ch)
}

func TestStoreChangeSetListenerReceivesAppliedChangeSets(t *testing.T) {
	store := NewStore(ldlog.NewDisabledLoggers())
	defer store.Close()

	ch := store.AddChangeSetListener()
	defer store.RemoveChangeSetListener(ch)

	cs := makeFullChangeSet(t, NewSelector("s1", 1), map[string]int{"f1": 1})
	store.Apply(cs, false)

	select {
	case received := <-ch:
		assert.Equal(t, cs, received)
	case <-time.After(time.Second):
		require.Fail(t, "timed out waiting for changeset")
	}
}

func TestStoreMalformedItemRejectsWholeChangeSet(t *testing.T) {
	mockLog := ldlogtest.NewMockLog()
	store := NewStore(mockLog.Loggers)
	defer store.Close()

	b := NewChangeSetBuilder()
	b.Start(IntentTransferFull)
	b.AddPut(ldstoretypes.DataKindFeatures, "good", 1, makeFlagJSON("good", 1))
	b.AddPut(ldstoretypes.DataKindFeatures, "bad", 1, json.RawMessage(`{"key":`))
	cs, err := b.Finish(NewSelector("s1", 1))
	require.NoError(t, err)
	store.Apply(cs, false)

	assert.False(t, store.IsInitialized())
	assert.Equal(t, NoSelector(), store.Selector())
	_, err = store.GetActive().Get(ldstoretypes.DataKindFeatures, "good")
	require.NoError(t, err)
	item, _ := store.GetActive().Get(ldstoretypes.DataKindFeatures, "good")
	assert.Nil(t, item.Item)
	mockLog.AssertMessageMatch(t, true, ldlog.Error, "Rejected data update")
}

func TestStoreLogsInconsistencyWarningForBadVariationIndex(t *testing.T) {
	mockLog := ldlogtest.NewMockLog()
	store := NewStore(mockLog.Loggers)
	defer store.Close()

	badFlag := json.RawMessage(
		`{"key":"bad-flag","version":1,"offVariation":5,"variations":[true,false],"salt":"x"}`)
	b := NewChangeSetBuilder()
	b.Start(IntentTransferFull)
	b.AddPut(ldstoretypes.DataKindFeatures, "bad-flag", 1, badFlag)
	cs, err := b.Finish(NewSelector("s1", 1))
	require.NoError(t, err)
	store.Apply(cs, false)

	// The flag is still stored and usable despite the warning.
	assert.True(t, store.IsInitialized())
	item, err := store.GetActive().Get(ldstoretypes.DataKindFeatures, "bad-flag")
	require.NoError(t, err)
	assert.NotNil(t, item.Item)

	warnings := mockLog.GetOutput(ldlog.Warn)
	count := 0
	for _, line := range warnings {
		if strings.Contains(line, "bad-flag") {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestStoreNoneIntentIsNoOp(t *testing.T) {
	store := NewStore(ldlog.NewDisabledLoggers())
	defer store.Close()

	store.Apply(makeFullChangeSet(t, NewSelector("s1", 1), map[string]int{"f1": 1}), false)
	store.Apply(NewNoChangesChangeSet(NewSelector("s2", 2)), false)

	// A no-op delivery does not advance the selector.
	assert.Equal(t, NewSelector("s1", 1), store.Selector())
	assert.True(t, store.IsInitialized())
}

func TestStoreReadsFromPersistentStoreBeforeFirstFullTransfer(t *testing.T) {
	core := sharedtest.NewMockPersistentDataStore()
	item, err := datakinds.Deserialize(ldstoretypes.DataKindFeatures, makeFlagJSON("warm", 5))
	require.NoError(t, err)
	core.ForceSet(ldstoretypes.DataKindFeatures, "warm",
		datakinds.ToSerializedItemDescriptor(ldstoretypes.DataKindFeatures, "warm", item))

	wrapper := datastore.NewPersistentDataStoreWrapper(core, 0, ldlog.NewDisabledLoggers())
	store := NewStore(ldlog.NewDisabledLoggers()).WithPersistence(wrapper, StoreModeRead)
	defer store.Close()

	got, err := store.GetActive().Get(ldstoretypes.DataKindFeatures, "warm")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Version)

	store.Apply(makeFullChangeSet(t, NewSelector("s1", 1), map[string]int{"f1": 1}), true)

	// Memory is now authoritative, and read-only mode never wrote back.
	_, err = store.GetActive().Get(ldstoretypes.DataKindFeatures, "f1")
	require.NoError(t, err)
	got, err = store.GetActive().Get(ldstoretypes.DataKindFeatures, "warm")
	require.NoError(t, err)
	assert.Nil(t, got.Item)
	assert.Equal(t, 0, core.InitCount())
}

func TestStoreReadWriteModeMirrorsDataToPersistentStore(t *testing.T) {
	core := sharedtest.NewMockPersistentDataStore()
	wrapper := datastore.NewPersistentDataStoreWrapper(core, 0, ldlog.NewDisabledLoggers())
	store := NewStore(ldlog.NewDisabledLoggers()).WithPersistence(wrapper, StoreModeReadWrite)
	defer store.Close()

	store.Apply(makeFullChangeSet(t, NewSelector("s1", 1), map[string]int{"f1": 1}), true)
	assert.Equal(t, 1, core.InitCount())

	b := NewChangeSetBuilder()
	b.Start(IntentTransferChanges)
	b.AddPut(ldstoretypes.DataKindFeatures, "f2", 1, makeFlagJSON("f2", 1))
	cs, err := b.Finish(NewSelector("s2", 2))
	require.NoError(t, err)
	store.Apply(cs, true)

	serialized, found := core.ForceGet(ldstoretypes.DataKindFeatures, "f2")
	require.True(t, found)
	assert.Equal(t, 1, serialized.Version)
}

func TestStoreDoesNotPersistWhenPersistFlagIsFalse(t *testing.T) {
	core := sharedtest.NewMockPersistentDataStore()
	wrapper := datastore.NewPersistentDataStoreWrapper(core, 0, ldlog.NewDisabledLoggers())
	store := NewStore(ldlog.NewDisabledLoggers()).WithPersistence(wrapper, StoreModeReadWrite)
	defer store.Close()

	store.ApplyBasis(&Basis{
		ChangeSet: makeFullChangeSet(t, NewSelector("s1", 1), map[string]int{"f1": 1}),
		Persist:   false,
	})
	assert.Equal(t, 0, core.InitCount())

	require.NoError(t, store.Commit())
	assert.Equal(t, 1, core.InitCount())
	_, found := core.ForceGet(ldstoretypes.DataKindFeatures, "f1")
	assert.True(t, found)
}

func TestStoreCommitIsNoOpInReadOnlyMode(t *testing.T) {
	core := sharedtest.NewMockPersistentDataStore()
	wrapper := datastore.NewPersistentDataStoreWrapper(core, 0, ldlog.NewDisabledLoggers())
	store := NewStore(ldlog.NewDisabledLoggers()).WithPersistence(wrapper, StoreModeRead)
	defer store.Close()

	store.Apply(makeFullChangeSet(t, NewSelector("s1", 1), map[string]int{"f1": 1}), true)
	require.NoError(t, store.Commit())
	assert.Equal(t, 0, core.InitCount())
}

func TestStorePersistenceFailureDoesNotAffectMemoryUpdate(t *testing.T) {
	mockLog := ldlogtest.NewMockLog()
	core := sharedtest.NewMockPersistentDataStore()
	core.SetFakeError(fmt.Errorf("sorry"))
	wrapper := datastore.NewPersistentDataStoreWrapper(core, 0, mockLog.Loggers)
	store := NewStore(mockLog.Loggers).WithPersistence(wrapper, StoreModeReadWrite)
	defer store.Close()

	store.Apply(makeFullChangeSet(t, NewSelector("s1", 1), map[string]int{"f1": 1}), true)

	assert.True(t, store.IsInitialized())
	item, err := store.GetActive().Get(ldstoretypes.DataKindFeatures, "f1")
	require.NoError(t, err)
	assert.Equal(t, 1, item.Version)
	mockLog.AssertMessageMatch(t, true, ldlog.Error, "Failed to write full data set")
}

func TestStoreApplyUpdateRoutesStateAndData(t *testing.T) {
	store := NewStore(ldlog.NewDisabledLoggers())
	defer store.Close()

	statusCh := store.DataSourceStatusProvider().AddStatusListener()
	defer store.DataSourceStatusProvider().RemoveStatusListener(statusCh)

	store.ApplyUpdate(Update{
		State:     interfaces.DataSourceStateValid,
		ChangeSet: makeFullChangeSet(t, NewSelector("s1", 1), map[string]int{"f1": 1}),
	})

	assert.True(t, store.IsInitialized())
	select {
	case status := <-statusCh:
		assert.Equal(t, interfaces.DataSourceStateValid, status.State)
	case <-time.After(time.Second):
		require.Fail(t, "timed out waiting for status")
	}
}

func TestStoreStatusProvidersWithoutPersistentStore(t *testing.T) {
	store := NewStore(ldlog.NewDisabledLoggers())
	defer store.Close()

	provider := store.DataStoreStatusProvider()
	assert.False(t, provider.IsStatusMonitoringEnabled())
	assert.Equal(t, interfaces.DataStoreStatus{Available: true}, provider.GetStatus())

	ch := provider.AddStatusListener()
	provider.RemoveStatusListener(ch)
}

func TestStoreStatusProvidersWithPersistentStore(t *testing.T) {
	core := sharedtest.NewMockPersistentDataStore()
	wrapper := datastore.NewPersistentDataStoreWrapper(core, 0, ldlog.NewDisabledLoggers())
	store := NewStore(ldlog.NewDisabledLoggers()).WithPersistence(wrapper, StoreModeReadWrite)
	defer store.Close()

	provider := store.DataStoreStatusProvider()
	assert.True(t, provider.IsStatusMonitoringEnabled())
	assert.Equal(t, interfaces.DataStoreStatus{Available: true}, provider.GetStatus())
}

func TestStoreCloseClosesPersistentStore(t *testing.T) {
	core := sharedtest.NewMockPersistentDataStore()
	wrapper := datastore.NewPersistentDataStoreWrapper(core, 0, ldlog.NewDisabledLoggers())
	store := NewStore(ldlog.NewDisabledLoggers()).WithPersistence(wrapper, StoreModeReadWrite)

	require.NoError(t, store.Close())
	assert.True(t, core.IsClosed())
}
