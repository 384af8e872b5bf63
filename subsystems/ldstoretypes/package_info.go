// Package ldstoretypes contains the value types used by the data system's store
// interfaces.
//
// Application code normally does not need to refer to these types. They are used
// by data store implementations, and by any code that needs to inspect the raw
// contents of a store.
package ldstoretypes
