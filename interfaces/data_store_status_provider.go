package interfaces

// DataStoreStatus contains information about the availability of a persistent
// data store.
type DataStoreStatus struct {
	// Available is true if the store is currently usable. It becomes false when
	// a store operation fails, and true again when the availability poller (or a
	// later successful operation) detects that the store has recovered.
	Available bool

	// Stale is true if the store may be missing updates that were applied while
	// it was unavailable, so its contents should be rewritten from the latest
	// known-good data. This is only set on a transition back to Available.
	Stale bool
}

// DataStoreStatusProvider is an interface for querying the status of a
// persistent data store and subscribing to status change notifications.
//
// Status changes are broadcast only when the status has actually changed:
// repeatedly reporting an identical status produces no notifications.
type DataStoreStatusProvider interface {
	// GetStatus returns the current status of the store.
	GetStatus() DataStoreStatus

	// IsStatusMonitoringEnabled returns true if the underlying store supports
	// availability monitoring. If false, GetStatus always reports an available
	// state and no notifications are ever sent.
	IsStatusMonitoringEnabled() bool

	// AddStatusListener subscribes for notifications of status changes. The
	// returned channel has a small buffer; the caller must consume it promptly
	// or risk blocking internal goroutines.
	AddStatusListener() <-chan DataStoreStatus

	// RemoveStatusListener unsubscribes a channel previously returned by
	// AddStatusListener, and closes it.
	RemoveStatusListener(ch <-chan DataStoreStatus)
}
