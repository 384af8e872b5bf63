package interfaces

// FlagChangeEvent indicates that the stored configuration of a flag has
// changed, or may have changed because something it depends on (directly or
// transitively, through prerequisites or segments) has changed.
//
// The event does not carry the new flag configuration; interested listeners can
// re-read the flag from the active store.
type FlagChangeEvent struct {
	// Key is the key of the feature flag whose configuration may have changed.
	Key string
}

// FlagTracker is an interface for subscribing to flag change notifications.
type FlagTracker interface {
	// AddFlagChangeListener subscribes for notifications of changes to any
	// flag. The returned channel has a small buffer; the caller must consume it
	// promptly.
	AddFlagChangeListener() <-chan FlagChangeEvent

	// RemoveFlagChangeListener unsubscribes a channel previously returned by
	// AddFlagChangeListener, and closes it.
	RemoveFlagChangeListener(ch <-chan FlagChangeEvent)
}
