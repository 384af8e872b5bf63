// Package datastatus maintains the externally visible status of the
// persistent data store and of the upstream data source, de-duplicating
// transitions and notifying listeners.
package datastatus

import (
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/launchdarkly/go-datasystem/interfaces"
	"github.com/launchdarkly/go-datasystem/internal/broadcast"
)

// How often the recovery poller probes an unavailable store.
const statusPollInterval = time.Millisecond * 500

// DataStoreStatusManager tracks the availability of a persistent store. While
// the store is unavailable it runs a background poller that probes for
// recovery; a status change is broadcast exactly once per actual transition,
// whether it was detected by the poller or by a direct store operation.
type DataStoreStatusManager struct {
	broadcaster       *broadcast.Broadcaster[interfaces.DataStoreStatus]
	statusPollFn      func() bool
	refreshOnRecovery bool
	currentStatus     interfaces.DataStoreStatus
	pollerQuit        chan struct{}
	closed            bool
	loggers           ldlog.Loggers
	lock              sync.Mutex
}

// NewDataStoreStatusManager creates a DataStoreStatusManager.
//
// statusPollFn is the availability probe; it must be safe to call from a
// background goroutine. refreshOnRecovery is true if the store's data may be
// out of date after an outage, in which case the recovery status carries
// Stale=true so that a data source can re-send the data set.
func NewDataStoreStatusManager(
	availableNow bool,
	statusPollFn func() bool,
	refreshOnRecovery bool,
	loggers ldlog.Loggers,
) *DataStoreStatusManager {
	return &DataStoreStatusManager{
		broadcaster:       broadcast.NewBroadcaster[interfaces.DataStoreStatus](),
		statusPollFn:      statusPollFn,
		refreshOnRecovery: refreshOnRecovery,
		currentStatus:     interfaces.DataStoreStatus{Available: availableNow},
		loggers:           loggers,
	}
}

// Broadcaster returns the broadcaster that listeners are registered on.
func (m *DataStoreStatusManager) Broadcaster() *broadcast.Broadcaster[interfaces.DataStoreStatus] {
	return m.broadcaster
}

// GetStatus returns the current status.
func (m *DataStoreStatusManager) GetStatus() interfaces.DataStoreStatus {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.currentStatus
}

// UpdateAvailability signals that the store is or is not available. Redundant
// calls are ignored. On a transition to unavailable, the recovery poller is
// started; on a transition to available (from either a direct operation or
// the poller itself), any running poller is stopped.
func (m *DataStoreStatusManager) UpdateAvailability(available bool) {
	status := interfaces.DataStoreStatus{Available: available, Stale: available && m.refreshOnRecovery}

	m.lock.Lock()
	if m.currentStatus.Available == available || m.closed {
		m.lock.Unlock()
		return
	}
	m.currentStatus = status
	var startPoller chan struct{}
	if available {
		if m.pollerQuit != nil {
			close(m.pollerQuit)
			m.pollerQuit = nil
		}
	} else if m.pollerQuit == nil {
		m.pollerQuit = make(chan struct{})
		startPoller = m.pollerQuit
	}
	m.lock.Unlock()

	if available {
		m.loggers.Warn("Persistent store is available again")
	} else {
		m.loggers.Error("Detected persistent store unavailability; updates will be cached until it recovers")
	}
	m.broadcaster.Broadcast(status)

	if startPoller != nil {
		go m.monitorStoreAvailability(startPoller)
	}
}

// Close stops any running poller and closes all listener channels.
func (m *DataStoreStatusManager) Close() {
	m.lock.Lock()
	m.closed = true
	if m.pollerQuit != nil {
		close(m.pollerQuit)
		m.pollerQuit = nil
	}
	m.lock.Unlock()
	m.broadcaster.Close()
}

func (m *DataStoreStatusManager) monitorStoreAvailability(quit chan struct{}) {
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			if m.statusPollFn() {
				// This closes quit, so the poller will not run again.
				m.UpdateAvailability(true)
				return
			}
		}
	}
}
