// Package replica defines the boundary to the replication engine that
// stores, merges and broadcasts workspace documents.
//
// Components never hold a document across calls. They receive one inside
// Handle.Change, mutate it, and return; the engine commits the whole change
// or none of it.
package replica

import (
	"context"
	"errors"

	"xdao.co/commons/workspace"
)

var (
	ErrNotFound = errors.New("replica: document not found")
	ErrExists   = errors.New("replica: document already exists")
	ErrClosed   = errors.New("replica: engine closed")
)

// Origin says where a committed change came from.
type Origin string

const (
	OriginLocal Origin = "local"
	OriginMerge Origin = "merge"
)

// Event is delivered to subscribers after a change commits.
type Event struct {
	DocID        string `json:"docId"`
	Origin       Origin `json:"origin"`
	Message      string `json:"message,omitempty"`
	LastModified int64  `json:"lastModified"`
}

// ChangeFunc mutates a private copy of the document. Returning an error
// discards every mutation it made.
type ChangeFunc func(doc *workspace.Document) error

// Handle is an open replicated document.
type Handle interface {
	ID() string
	// Snapshot returns a deep copy of the current state.
	Snapshot() (*workspace.Document, error)
	// Change applies fn atomically. msg describes the change for history
	// and subscribers.
	Change(msg string, fn ChangeFunc) error
	// Merge folds a remote replica's state into this one.
	Merge(remote *workspace.Document) error
	// Subscribe delivers an Event per committed change until ctx is done.
	// Slow subscribers miss events rather than block writers.
	Subscribe(ctx context.Context) <-chan Event
}

// Engine opens and creates documents by stable id.
type Engine interface {
	// Create registers doc under id. An empty id asks the engine to pick one.
	Create(ctx context.Context, id string, doc *workspace.Document) (Handle, error)
	Open(ctx context.Context, id string) (Handle, error)
}
