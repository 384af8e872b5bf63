// Package interfaces contains the types the data system exposes to observers:
// data store status, data source (update source) status, and flag change events.
package interfaces
