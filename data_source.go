package datasystem

import (
	"context"

	"github.com/launchdarkly/go-datasystem/interfaces"
)

// Update is one element of a Synchronizer's output sequence: a connection
// state, optionally accompanied by a ChangeSet and/or error details.
type Update struct {
	// State is the synchronizer's view of the connection.
	State interfaces.DataSourceState
	// ChangeSet carries new data, if this update has any.
	ChangeSet *ChangeSet
	// Error describes the most recent failure, if any. It is informational;
	// error handling is expressed through State.
	Error interfaces.DataSourceErrorInfo
}

// Initializer is an update source that can fetch an initial data set once.
// Examples are a polling request, a file, or a read from a persistent store
// that some other process keeps up to date.
type Initializer interface {
	// Fetch retrieves the data set. It blocks until the data is available, the
	// context is cancelled, or the attempt fails.
	Fetch(ctx context.Context) (*Basis, error)
}

// Synchronizer is an update source that keeps the data up to date continuously.
//
// Sync delivers a possibly infinite sequence of Updates on the returned
// channel, starting from the given Selector so that a previously obtained data
// state is not re-transferred. The channel is closed after the synchronizer
// reports a terminal Off state or the context is cancelled. An Interrupted
// state is not terminal; it means "current data may be stale, but the
// synchronizer is still trying".
type Synchronizer interface {
	Sync(ctx context.Context, selector Selector) <-chan Update
}
