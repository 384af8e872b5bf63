package datastatus

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"

	"github.com/launchdarkly/go-datasystem/interfaces"
)

func TestStoreStatusStartsWithInitialAvailability(t *testing.T) {
	m := NewDataStoreStatusManager(true, func() bool { return true }, false, ldlogtest.NewMockLog().Loggers)
	defer m.Close()
	assert.Equal(t, interfaces.DataStoreStatus{Available: true}, m.GetStatus())
}

func TestStoreStatusTransitionIsBroadcastOnce(t *testing.T) {
	m := NewDataStoreStatusManager(true, func() bool { return false }, false, ldlogtest.NewMockLog().Loggers)
	defer m.Close()

	statusCh := m.Broadcaster().AddListener()

	m.UpdateAvailability(false)
	m.UpdateAvailability(false)

	status := requireStatus(t, statusCh)
	assert.Equal(t, interfaces.DataStoreStatus{Available: false}, status)
	requireNoStatus(t, statusCh)
}

func TestStoreStatusPollerDetectsRecovery(t *testing.T) {
	var available atomic.Bool
	m := NewDataStoreStatusManager(true, available.Load, false, ldlogtest.NewMockLog().Loggers)
	defer m.Close()

	statusCh := m.Broadcaster().AddListener()

	m.UpdateAvailability(false)
	assert.Equal(t, interfaces.DataStoreStatus{Available: false}, requireStatus(t, statusCh))

	available.Store(true)
	assert.Equal(t, interfaces.DataStoreStatus{Available: true}, requireStatus(t, statusCh))
	assert.Equal(t, interfaces.DataStoreStatus{Available: true}, m.GetStatus())
}

func TestStoreStatusRecoverySetsStaleWhenRefreshIsNeeded(t *testing.T) {
	m := NewDataStoreStatusManager(true, func() bool { return false }, true, ldlogtest.NewMockLog().Loggers)
	defer m.Close()

	statusCh := m.Broadcaster().AddListener()

	m.UpdateAvailability(false)
	requireStatus(t, statusCh)

	// recovery detected by a direct operation, not the poller
	m.UpdateAvailability(true)
	assert.Equal(t, interfaces.DataStoreStatus{Available: true, Stale: true}, requireStatus(t, statusCh))
}

func TestStoreStatusUpdateAfterCloseIsIgnored(t *testing.T) {
	m := NewDataStoreStatusManager(true, func() bool { return false }, false, ldlogtest.NewMockLog().Loggers)
	m.Close()
	m.UpdateAvailability(false)
	assert.Equal(t, interfaces.DataStoreStatus{Available: true}, m.GetStatus())
}

func requireStatus[S any](t *testing.T, ch <-chan S) S {
	select {
	case s := <-ch:
		return s
	case <-time.After(time.Second * 2):
		require.FailNow(t, "timed out waiting for status")
		var zero S
		return zero
	}
}

func requireNoStatus[S any](t *testing.T, ch <-chan S) {
	select {
	case s := <-ch:
		require.FailNow(t, "received unexpected status", "%+v", s)
	case <-time.After(time.Millisecond * 100):
	}
}
