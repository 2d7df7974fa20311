// Package store is the transactional persistence boundary. The engine
// stages every entity write and relationship change produced by a rebuild
// pass into a Tx and commits it atomically; a failed pass discards the Tx
// whole, leaving the previously committed state untouched.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrTransactionAborted reports a rebuild pass whose transaction was
// discarded because a staged entity ended in error. The store's prior
// committed state is intact; the in-memory edits stay dirty for retry.
var ErrTransactionAborted = errors.New("transaction aborted")

// EntityKind identifies the typed object behind a record.
type EntityKind string

const (
	KindAlignment EntityKind = "alignment"
	KindProfile   EntityKind = "profile"
	KindTemplate  EntityKind = "template"
	KindCorridor  EntityKind = "corridor"
)

// Record is the persisted envelope for one entity: its defining state
// (PIs, PVIs, components, assignments) plus, for derived entities, the
// committed geometry handed to the display layer.
type Record struct {
	ID       string          `json:"id"`
	Kind     EntityKind      `json:"kind"`
	Version  int64           `json:"version"`
	Payload  json.RawMessage `json:"payload"`
	Geometry json.RawMessage `json:"geometry,omitempty"`
	TsCommit time.Time       `json:"ts_commit"`
}

// Key addresses one entity.
type Key struct {
	Kind EntityKind `json:"kind"`
	ID   string     `json:"id"`
}

// EdgeRecord is a persisted producer -> consumer relationship.
type EdgeRecord struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
	Type   string `json:"type"`
}

// Tx is a staged change set. It accumulates in memory and hits the store
// only on Commit; dropping a Tx without committing is the rollback.
type Tx struct {
	Puts        []Record
	Deletes     []Key
	EdgePuts    []EdgeRecord
	EdgeDeletes []EdgeRecord
}

// Put stages an entity write.
func (tx *Tx) Put(rec Record) { tx.Puts = append(tx.Puts, rec) }

// Delete stages an entity removal.
func (tx *Tx) Delete(kind EntityKind, id string) {
	tx.Deletes = append(tx.Deletes, Key{Kind: kind, ID: id})
}

// PutEdge stages a relationship write.
func (tx *Tx) PutEdge(e EdgeRecord) { tx.EdgePuts = append(tx.EdgePuts, e) }

// DeleteEdge stages a relationship removal.
func (tx *Tx) DeleteEdge(e EdgeRecord) { tx.EdgeDeletes = append(tx.EdgeDeletes, e) }

// Empty reports whether the change set stages nothing.
func (tx *Tx) Empty() bool {
	return len(tx.Puts) == 0 && len(tx.Deletes) == 0 &&
		len(tx.EdgePuts) == 0 && len(tx.EdgeDeletes) == 0
}

// EntityStore is the abstract typed entity store the core writes through.
// The core assumes nothing about the on-disk format beyond these
// operations; Commit is all-or-nothing.
type EntityStore interface {
	Get(ctx context.Context, kind EntityKind, id string) (*Record, error)
	List(ctx context.Context, kind EntityKind) ([]*Record, error)
	ListEdges(ctx context.Context) ([]EdgeRecord, error)
	Commit(ctx context.Context, tx *Tx) error
	Close() error
}
