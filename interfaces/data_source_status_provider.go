package interfaces

import (
	"fmt"
	"time"
)

// DataSourceState is the state of the connection to the upstream update source.
type DataSourceState string

const (
	// DataSourceStateInitializing means the data source has not yet delivered
	// any valid data. This is the initial state.
	DataSourceStateInitializing DataSourceState = "INITIALIZING"
	// DataSourceStateValid means the data source is connected and delivering
	// updates normally.
	DataSourceStateValid DataSourceState = "VALID"
	// DataSourceStateInterrupted means the connection has failed after having
	// been valid; data already received is still usable but may become stale.
	// The data source keeps trying to reconnect in this state.
	DataSourceStateInterrupted DataSourceState = "INTERRUPTED"
	// DataSourceStateOff means the data source has been permanently shut down,
	// either deliberately or because of an unrecoverable error. This state is
	// terminal for that data source instance.
	DataSourceStateOff DataSourceState = "OFF"
)

// DataSourceErrorKind classifies an error reported by the data source.
type DataSourceErrorKind string

const (
	// DataSourceErrorKindUnknown is an error that does not fit any other category.
	DataSourceErrorKindUnknown DataSourceErrorKind = "UNKNOWN"
	// DataSourceErrorKindNetworkError is an I/O error such as a dropped connection.
	DataSourceErrorKindNetworkError DataSourceErrorKind = "NETWORK_ERROR"
	// DataSourceErrorKindErrorResponse means the upstream service returned an
	// HTTP error response; StatusCode carries the status.
	DataSourceErrorKindErrorResponse DataSourceErrorKind = "ERROR_RESPONSE"
	// DataSourceErrorKindInvalidData means the upstream service returned data
	// that could not be parsed.
	DataSourceErrorKindInvalidData DataSourceErrorKind = "INVALID_DATA"
	// DataSourceErrorKindStoreError means an update could not be written to the
	// data store.
	DataSourceErrorKindStoreError DataSourceErrorKind = "STORE_ERROR"
)

// DataSourceErrorInfo describes the last error reported by the data source.
// Errors are surfaced this way, through status listeners, rather than through
// control flow: a data source error never aborts the data system.
type DataSourceErrorInfo struct {
	// Kind is the category of the error.
	Kind DataSourceErrorKind
	// StatusCode is the HTTP status, if Kind is ERROR_RESPONSE; otherwise zero.
	StatusCode int
	// Message is any additional human-readable information.
	Message string
	// Time is when the error occurred.
	Time time.Time
}

// String returns a compact description of the error, like "ERROR_RESPONSE(401)".
func (e DataSourceErrorInfo) String() string {
	if e.StatusCode > 0 || e.Message != "" {
		contents := ""
		if e.StatusCode > 0 {
			contents = fmt.Sprintf("%d", e.StatusCode)
		}
		if e.Message != "" {
			if contents != "" {
				contents += ","
			}
			contents += e.Message
		}
		return fmt.Sprintf("%s(%s)", string(e.Kind), contents)
	}
	return string(e.Kind)
}

// DataSourceStatus is the current state of the update source, with the time of
// the last state transition and the most recent error if any.
type DataSourceStatus struct {
	// State is the basic state of the connection.
	State DataSourceState
	// StateSince is when State most recently changed value.
	StateSince time.Time
	// LastError is the most recent error, regardless of the current state. Its
	// zero value means no error has occurred.
	LastError DataSourceErrorInfo
}

// String returns a compact description of the status.
func (s DataSourceStatus) String() string {
	return fmt.Sprintf("Status(%s,%s,%s)", string(s.State),
		s.StateSince.Format(time.RFC3339), s.LastError)
}

// DataSourceStatusProvider is an interface for querying the status of the
// update source and subscribing to status change notifications. Like store
// status notifications, these are de-duplicated: an update that changes neither
// the state nor the error produces no notification.
type DataSourceStatusProvider interface {
	// GetStatus returns the current status.
	GetStatus() DataSourceStatus

	// AddStatusListener subscribes for notifications of status changes. The
	// returned channel has a small buffer; the caller must consume it promptly.
	AddStatusListener() <-chan DataSourceStatus

	// RemoveStatusListener unsubscribes a channel previously returned by
	// AddStatusListener, and closes it.
	RemoveStatusListener(ch <-chan DataSourceStatus)

	// WaitFor blocks until the status provider reaches the desired state, or
	// until the timeout elapses (a nonpositive timeout means wait forever), or
	// until the state becomes OFF (which is terminal). It returns true only if
	// the desired state was reached.
	WaitFor(desiredState DataSourceState, timeout time.Duration) bool
}
