package datastatus

import (
	"sync"
	"time"

	"github.com/launchdarkly/go-datasystem/interfaces"
	"github.com/launchdarkly/go-datasystem/internal/broadcast"
)

// DataSourceStatusManager tracks the state of the upstream data source
// connection. Like DataStoreStatusManager, it de-duplicates: a listener is
// notified only when the reported status actually changes.
type DataSourceStatusManager struct {
	broadcaster   *broadcast.Broadcaster[interfaces.DataSourceStatus]
	currentStatus interfaces.DataSourceStatus
	lock          sync.Mutex
}

// NewDataSourceStatusManager creates a DataSourceStatusManager in the
// Initializing state.
func NewDataSourceStatusManager() *DataSourceStatusManager {
	return &DataSourceStatusManager{
		broadcaster: broadcast.NewBroadcaster[interfaces.DataSourceStatus](),
		currentStatus: interfaces.DataSourceStatus{
			State:      interfaces.DataSourceStateInitializing,
			StateSince: time.Now(),
		},
	}
}

// Broadcaster returns the broadcaster that listeners are registered on.
func (m *DataSourceStatusManager) Broadcaster() *broadcast.Broadcaster[interfaces.DataSourceStatus] {
	return m.broadcaster
}

// GetStatus returns the current status.
func (m *DataSourceStatusManager) GetStatus() interfaces.DataSourceStatus {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.currentStatus
}

// UpdateStatus sets the state of the data source, plus an optional error.
//
// An Interrupted state reported before the data source has ever become Valid
// is recorded as still Initializing: a connection that has not yet succeeded
// cannot be "interrupted", and clients waiting for initialization should not
// see a spurious transition. The error, if any, is kept in either case.
func (m *DataSourceStatusManager) UpdateStatus(
	newState interfaces.DataSourceState,
	newError interfaces.DataSourceErrorInfo,
) {
	m.lock.Lock()
	if newState == interfaces.DataSourceStateInterrupted &&
		m.currentStatus.State == interfaces.DataSourceStateInitializing {
		newState = interfaces.DataSourceStateInitializing
	}
	if newState == m.currentStatus.State && newError.Kind == "" {
		m.lock.Unlock()
		return
	}
	stateSince := m.currentStatus.StateSince
	if newState != m.currentStatus.State {
		stateSince = time.Now()
	}
	lastError := m.currentStatus.LastError
	if newError.Kind != "" {
		lastError = newError
	}
	m.currentStatus = interfaces.DataSourceStatus{
		State:      newState,
		StateSince: stateSince,
		LastError:  lastError,
	}
	status := m.currentStatus
	m.lock.Unlock()

	m.broadcaster.Broadcast(status)
}

// WaitFor blocks until the data source reaches the desired state, or until
// the timeout elapses (returning false), or until the data source reaches the
// terminal Off state when some other state was desired (also returning
// false). A timeout of zero means to wait indefinitely.
func (m *DataSourceStatusManager) WaitFor(desiredState interfaces.DataSourceState, timeout time.Duration) bool {
	m.lock.Lock()
	current := m.currentStatus.State
	m.lock.Unlock()
	if current == desiredState {
		return true
	}

	statusCh := m.broadcaster.AddListener()
	defer m.broadcaster.RemoveListener(statusCh)

	// Re-check after subscribing, in case the state changed in between.
	m.lock.Lock()
	current = m.currentStatus.State
	m.lock.Unlock()
	if current == desiredState {
		return true
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case newStatus, ok := <-statusCh:
			if !ok {
				return false
			}
			if newStatus.State == desiredState {
				return true
			}
			if newStatus.State == interfaces.DataSourceStateOff && desiredState != interfaces.DataSourceStateOff {
				return false
			}
		case <-deadline:
			return false
		}
	}
}

// Close closes all listener channels.
func (m *DataSourceStatusManager) Close() {
	m.broadcaster.Close()
}
