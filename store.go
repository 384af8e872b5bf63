package datasystem

import (
	"fmt"
	"sync"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/launchdarkly/go-datasystem/datamodel"
	"github.com/launchdarkly/go-datasystem/interfaces"
	"github.com/launchdarkly/go-datasystem/internal/broadcast"
	"github.com/launchdarkly/go-datasystem/internal/datakinds"
	"github.com/launchdarkly/go-datasystem/internal/datastatus"
	"github.com/launchdarkly/go-datasystem/internal/datastore"
	"github.com/launchdarkly/go-datasystem/internal/dependencies"
	"github.com/launchdarkly/go-datasystem/internal/memorystore"
	"github.com/launchdarkly/go-datasystem/subsystems"
	"github.com/launchdarkly/go-datasystem/subsystems/ldstoretypes"
)

// StoreMode says how a configured persistent store may be used.
type StoreMode int

const (
	// StoreModeRead means data is read from the persistent store but never
	// written to it; some other process is responsible for keeping it fresh.
	StoreModeRead StoreMode = iota
	// StoreModeReadWrite means received data is also mirrored into the
	// persistent store.
	StoreModeReadWrite
)

// Which of the two stores is currently authoritative for reads.
type activeStoreID int

const (
	activeStoreMemory activeStoreID = iota
	activeStorePersistent
)

// Store is the top-level coordinator of the data system. It owns an in-memory
// store, an optional persistent store, and the dependency graph between data
// items; it applies ChangeSets delivered by an update source and notifies
// listeners of the resulting flag changes and status transitions.
//
// Reads through GetActive are served from the in-memory store once a full
// data set has arrived. Before that, if a persistent store is configured, it
// is the read target, so that a client restarting against a warm database can
// evaluate flags before its update source connects.
//
// All methods are safe for concurrent use.
type Store struct {
	memoryStore         *memorystore.InMemoryStore
	persistentStore     *datastore.PersistentDataStoreWrapper
	persistentStoreMode StoreMode
	active              activeStoreID
	selector            Selector
	dependencyTracker   *dependencies.DependencyTracker

	flagChangeBroadcaster *broadcast.Broadcaster[interfaces.FlagChangeEvent]
	changeSetBroadcaster  *broadcast.Broadcaster[*ChangeSet]
	sourceStatusManager   *datastatus.DataSourceStatusManager
	// Used for the data store status provider when no persistent store is
	// configured, so that listener registration still works.
	fallbackStoreStatusBroadcaster *broadcast.Broadcaster[interfaces.DataStoreStatus]

	loggers ldlog.Loggers
	mu      sync.RWMutex
}

// NewStore creates a Store backed only by memory. Call WithPersistence before
// any other use to add a persistent store.
func NewStore(loggers ldlog.Loggers) *Store {
	return &Store{
		memoryStore:                    memorystore.New(loggers),
		active:                         activeStoreMemory,
		dependencyTracker:              dependencies.NewDependencyTracker(),
		flagChangeBroadcaster:          broadcast.NewBroadcaster[interfaces.FlagChangeEvent](),
		changeSetBroadcaster:           broadcast.NewBroadcaster[*ChangeSet](),
		sourceStatusManager:            datastatus.NewDataSourceStatusManager(),
		fallbackStoreStatusBroadcaster: broadcast.NewBroadcaster[interfaces.DataStoreStatus](),
		loggers:                        loggers,
	}
}

// WithPersistence attaches a persistent store. Until a full data set arrives
// from the update source, the persistent store is the active read target. The
// Store takes ownership of the wrapper and closes it when closed itself.
//
// This must be called before the Store is used; it returns the Store for
// chaining.
func (s *Store) WithPersistence(persistent *datastore.PersistentDataStoreWrapper, mode StoreMode) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistentStore = persistent
	s.persistentStoreMode = mode
	s.active = activeStorePersistent
	return s
}

// ApplyBasis applies an initializer's result.
func (s *Store) ApplyBasis(basis *Basis) {
	if basis == nil {
		return
	}
	s.Apply(basis.ChangeSet, basis.Persist)
}

// ApplyUpdate routes one element of a synchronizer's output: the connection
// state goes to the data source status provider, and any data goes through
// Apply.
func (s *Store) ApplyUpdate(update Update) {
	if update.State != "" || update.Error.Kind != "" {
		s.sourceStatusManager.UpdateStatus(update.State, update.Error)
	}
	if update.ChangeSet != nil {
		s.Apply(update.ChangeSet, true)
	}
}

// Apply applies a ChangeSet. persist requests that the data also be written
// to the persistent store; that happens only if one is configured and
// writable.
//
// Apply never fails from the caller's point of view: a malformed payload or a
// store error is logged, previously applied data is left intact, and the
// update source is free to keep delivering subsequent ChangeSets. Failed
// persistence does not undo a successful in-memory update.
func (s *Store) Apply(changeSet *ChangeSet, persist bool) {
	if changeSet == nil || changeSet.IntentCode() == IntentNone {
		return
	}

	// Decode everything up front: a malformed item rejects the whole batch
	// before any state is touched.
	collections, err := s.decodeChanges(changeSet.Changes())
	if err != nil {
		s.loggers.Errorf("Rejected data update: %s", err)
		return
	}

	var events []interfaces.FlagChangeEvent
	switch changeSet.IntentCode() {
	case IntentTransferFull:
		events = s.applyFullTransfer(collections, changeSet.Selector(), persist)
	case IntentTransferChanges:
		events = s.applyChangesTransfer(collections, changeSet.Selector(), persist)
	default:
		s.loggers.Warnf("Ignoring ChangeSet with unrecognized intent %q", changeSet.IntentCode())
		return
	}

	// Broadcasts happen outside the lock so a listener can read the store
	// from its callback without deadlocking.
	for _, event := range events {
		s.flagChangeBroadcaster.Broadcast(event)
	}
	s.changeSetBroadcaster.Broadcast(changeSet)
}

// AddChangeSetListener subscribes for the raw ChangeSets applied to the
// store, after each successful apply. This is a lower-level notification than
// the FlagTracker: it reports what the source delivered, not which flags were
// affected.
func (s *Store) AddChangeSetListener() <-chan *ChangeSet {
	return s.changeSetBroadcaster.AddListener()
}

// RemoveChangeSetListener unsubscribes a channel previously returned by
// AddChangeSetListener, and closes it.
func (s *Store) RemoveChangeSetListener(ch <-chan *ChangeSet) {
	s.changeSetBroadcaster.RemoveListener(ch)
}

// Commit pushes the full current in-memory data set into the persistent
// store, if one is configured and writable and memory is the authoritative
// side. Any store error is returned, not raised.
func (s *Store) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persistentStore == nil || s.persistentStoreMode != StoreModeReadWrite {
		return nil
	}
	if s.active != activeStoreMemory {
		return nil
	}
	return s.persistentStore.Init(s.memoryStore.Contents())
}

// GetActive returns the store that reads should currently be served from.
func (s *Store) GetActive() subsystems.ReadOnlyStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == activeStorePersistent {
		return s.persistentStore
	}
	return s.memoryStore
}

// IsInitialized reports whether the active store has a complete data set.
func (s *Store) IsInitialized() bool {
	return s.GetActive().IsInitialized()
}

// Selector returns the cursor of the last applied data, or the zero Selector
// if no data has arrived. An update source uses this to resume where the data
// left off.
func (s *Store) Selector() Selector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selector
}

// Close shuts down all listener channels and the persistent store, if any.
func (s *Store) Close() error {
	s.flagChangeBroadcaster.Close()
	s.changeSetBroadcaster.Close()
	s.sourceStatusManager.Close()
	s.fallbackStoreStatusBroadcaster.Close()
	s.mu.RLock()
	persistent := s.persistentStore
	s.mu.RUnlock()
	if persistent != nil {
		return persistent.Close()
	}
	return nil
}

func (s *Store) applyFullTransfer(
	collections []ldstoretypes.Collection,
	selector Selector,
	persist bool,
) []interfaces.FlagChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	hasListeners := s.flagChangeBroadcaster.HasListeners()
	var oldData []ldstoretypes.Collection
	if hasListeners {
		// Snapshot only when someone will see the diff.
		oldData = s.memoryStore.Contents()
	}

	s.memoryStore.SetBasis(collections)
	s.active = activeStoreMemory
	s.selector = selector

	s.dependencyTracker.Reset()
	for _, coll := range collections {
		for _, item := range coll.Items {
			s.dependencyTracker.UpdateDependenciesFrom(coll.Kind, item.Key, item.Item)
		}
	}

	if s.shouldPersist(persist) {
		if err := s.persistentStore.Init(collections); err != nil {
			s.loggers.Errorf("Failed to write full data set to persistent store: %s", err)
		}
	}

	if !hasListeners {
		return nil
	}
	affected := make(dependencies.KindAndKeySet)
	for _, changed := range diffDataSets(oldData, collections) {
		s.dependencyTracker.AddAffectedItems(affected, changed)
	}
	return flagChangeEventsFor(affected)
}

func (s *Store) applyChangesTransfer(
	collections []ldstoretypes.Collection,
	selector Selector,
	persist bool,
) []interfaces.FlagChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.memoryStore.ApplyDelta(collections)
	if s.memoryStore.IsInitialized() {
		s.active = activeStoreMemory
	}
	s.selector = selector

	hasListeners := s.flagChangeBroadcaster.HasListeners()
	affected := make(dependencies.KindAndKeySet)
	for _, coll := range collections {
		for _, item := range coll.Items {
			s.dependencyTracker.UpdateDependenciesFrom(coll.Kind, item.Key, item.Item)
			if hasListeners {
				s.dependencyTracker.AddAffectedItems(affected,
					dependencies.KindAndKey{Kind: coll.Kind, Key: item.Key})
			}
		}
	}

	if s.shouldPersist(persist) {
		for _, coll := range collections {
			for _, item := range coll.Items {
				if _, err := s.persistentStore.Upsert(coll.Kind, item.Key, item.Item); err != nil {
					s.loggers.Errorf("Failed to write %s %q to persistent store: %s",
						coll.Kind.Name(), item.Key, err)
				}
			}
		}
	}

	return flagChangeEventsFor(affected)
}

// shouldPersist must be called with the lock held.
func (s *Store) shouldPersist(persist bool) bool {
	return persist && s.persistentStore != nil && s.persistentStoreMode == StoreModeReadWrite
}

func (s *Store) decodeChanges(changes []Change) ([]ldstoretypes.Collection, error) {
	itemsByKind := make(map[ldstoretypes.DataKind][]ldstoretypes.KeyedItemDescriptor)
	for _, change := range changes {
		var item ldstoretypes.ItemDescriptor
		switch change.Action {
		case ChangeActionPut:
			var err error
			item, err = datakinds.Deserialize(change.Kind, change.Object)
			if err != nil {
				return nil, fmt.Errorf("malformed %s %q: %w", change.Kind.Name(), change.Key, err)
			}
			if item.Version == 0 {
				item.Version = change.Version
			}
			s.logInconsistencies(change.Kind, change.Key, item)
		case ChangeActionDelete:
			item = ldstoretypes.ItemDescriptor{Version: change.Version, Item: nil}
		default:
			return nil, fmt.Errorf("unrecognized change action %q for %s %q",
				change.Action, change.Kind.Name(), change.Key)
		}
		itemsByKind[change.Kind] = append(itemsByKind[change.Kind],
			ldstoretypes.KeyedItemDescriptor{Key: change.Key, Item: item})
	}
	collections := make([]ldstoretypes.Collection, 0, len(itemsByKind))
	for _, kind := range ldstoretypes.AllDataKinds() {
		if items, ok := itemsByKind[kind]; ok {
			collections = append(collections, ldstoretypes.Collection{Kind: kind, Items: items})
		}
	}
	return collections, nil
}

func (s *Store) logInconsistencies(kind ldstoretypes.DataKind, key string, item ldstoretypes.ItemDescriptor) {
	var problems []error
	switch typedItem := item.Item.(type) {
	case *datamodel.FeatureFlag:
		problems = datamodel.FlagDataInconsistencies(*typedItem)
	case *datamodel.Segment:
		problems = datamodel.SegmentDataInconsistencies(*typedItem)
	}
	for _, problem := range problems {
		s.loggers.Warnf("Data inconsistency in %s %q: %s", kind.Name(), key, problem)
	}
}

// diffDataSets returns the identifiers of items that differ between two full
// data sets: present on only one side, or present on both with different
// versions.
func diffDataSets(oldData, newData []ldstoretypes.Collection) []dependencies.KindAndKey {
	var changed []dependencies.KindAndKey
	oldVersions := make(map[dependencies.KindAndKey]int)
	for _, coll := range oldData {
		for _, item := range coll.Items {
			oldVersions[dependencies.KindAndKey{Kind: coll.Kind, Key: item.Key}] = item.Item.Version
		}
	}
	for _, coll := range newData {
		for _, item := range coll.Items {
			k := dependencies.KindAndKey{Kind: coll.Kind, Key: item.Key}
			if oldVersion, found := oldVersions[k]; !found || oldVersion != item.Item.Version {
				changed = append(changed, k)
			}
			delete(oldVersions, k)
		}
	}
	for k := range oldVersions {
		changed = append(changed, k)
	}
	return changed
}

func flagChangeEventsFor(affected dependencies.KindAndKeySet) []interfaces.FlagChangeEvent {
	var events []interfaces.FlagChangeEvent
	for item := range affected {
		if item.Kind == ldstoretypes.DataKindFeatures {
			events = append(events, interfaces.FlagChangeEvent{Key: item.Key})
		}
	}
	return events
}
