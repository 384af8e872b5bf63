package datasystem

import (
	"github.com/launchdarkly/go-datasystem/interfaces"
)

// FlagTracker returns the tracker that reports individual flag keys as they
// are affected by applied changes, directly or through dependencies.
func (s *Store) FlagTracker() interfaces.FlagTracker {
	return &flagTrackerImpl{store: s}
}

type flagTrackerImpl struct {
	store *Store
}

func (f *flagTrackerImpl) AddFlagChangeListener() <-chan interfaces.FlagChangeEvent {
	return f.store.flagChangeBroadcaster.AddListener()
}

func (f *flagTrackerImpl) RemoveFlagChangeListener(ch <-chan interfaces.FlagChangeEvent) {
	f.store.flagChangeBroadcaster.RemoveListener(ch)
}
