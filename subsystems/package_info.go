// Package subsystems contains the interfaces for the pluggable components of the
// data system: data stores, persistent data store integrations, and the update
// sources that feed them.
//
// Application code does not usually need to implement these interfaces; they are
// implemented by the components in this module and by database integrations such
// as the ldredis, ldconsul, and lddynamodb packages.
package subsystems
