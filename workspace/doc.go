// Package workspace defines the replicated workspace document: its root
// aggregate, the entities each feature module stores in it, the module table
// used to lazily initialize module data, and the lifecycle operations that
// create and stamp a document.
//
// A Document is plain data. Replication (merging two replicas, change
// notification) belongs to the engine behind replica.Handle; the rules for
// mutating a Document safely live in the protocol and module packages.
//
// Optional fields are pointers and are omitted from every encoding when nil.
// The replication engine distinguishes an absent key from a key holding an
// empty value, so code that builds entities must use Optional rather than
// storing a pointer to "".
package workspace
