// Package model defines stable boundary types for UIs and the CLI.
//
// Workspace identity (snapshot bytes and CIDs) is unaffected by any
// projection. These structs are the only types intended for direct JSON
// serialization by consumers; workspace types stay internal to the core.
package model
