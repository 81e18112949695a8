package storage

import (
	"github.com/cuemby/subnet-watchdog/pkg/types"
)

// HistoryStore records reconciliation passes
type HistoryStore interface {
	RecordPass(record *types.PassRecord) error

	// ListPasses returns up to limit records, newest first. limit <= 0 returns all.
	ListPasses(limit int) ([]*types.PassRecord, error)

	Close() error
}
