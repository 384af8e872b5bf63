package datasystem

import (
	"time"

	"github.com/launchdarkly/go-datasystem/interfaces"
	"github.com/launchdarkly/go-datasystem/internal/datastatus"
	"github.com/launchdarkly/go-datasystem/internal/datastore"
)

// DataStoreStatusProvider returns the status provider for the persistent
// store. With no persistent store configured, the status is permanently
// available and no notifications are ever sent.
func (s *Store) DataStoreStatusProvider() interfaces.DataStoreStatusProvider {
	return &dataStoreStatusProviderImpl{store: s}
}

// DataSourceStatusProvider returns the status provider for the upstream data
// source connection.
func (s *Store) DataSourceStatusProvider() interfaces.DataSourceStatusProvider {
	return &dataSourceStatusProviderImpl{manager: s.sourceStatusManager}
}

func (s *Store) persistentWrapper() *datastore.PersistentDataStoreWrapper {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persistentStore
}

type dataStoreStatusProviderImpl struct {
	store *Store
}

func (d *dataStoreStatusProviderImpl) GetStatus() interfaces.DataStoreStatus {
	if persistent := d.store.persistentWrapper(); persistent != nil {
		return persistent.StatusManager().GetStatus()
	}
	return interfaces.DataStoreStatus{Available: true}
}

func (d *dataStoreStatusProviderImpl) IsStatusMonitoringEnabled() bool {
	return d.store.persistentWrapper() != nil
}

func (d *dataStoreStatusProviderImpl) AddStatusListener() <-chan interfaces.DataStoreStatus {
	if persistent := d.store.persistentWrapper(); persistent != nil {
		return persistent.StatusManager().Broadcaster().AddListener()
	}
	return d.store.fallbackStoreStatusBroadcaster.AddListener()
}

func (d *dataStoreStatusProviderImpl) RemoveStatusListener(ch <-chan interfaces.DataStoreStatus) {
	if persistent := d.store.persistentWrapper(); persistent != nil {
		persistent.StatusManager().Broadcaster().RemoveListener(ch)
		return
	}
	d.store.fallbackStoreStatusBroadcaster.RemoveListener(ch)
}

type dataSourceStatusProviderImpl struct {
	manager *datastatus.DataSourceStatusManager
}

func (d *dataSourceStatusProviderImpl) GetStatus() interfaces.DataSourceStatus {
	return d.manager.GetStatus()
}

func (d *dataSourceStatusProviderImpl) AddStatusListener() <-chan interfaces.DataSourceStatus {
	return d.manager.Broadcaster().AddListener()
}

func (d *dataSourceStatusProviderImpl) RemoveStatusListener(ch <-chan interfaces.DataSourceStatus) {
	d.manager.Broadcaster().RemoveListener(ch)
}

func (d *dataSourceStatusProviderImpl) WaitFor(desiredState interfaces.DataSourceState, timeout time.Duration) bool {
	return d.manager.WaitFor(desiredState, timeout)
}
