package storage

import "time"

// Batch kinds.
const (
	KindFiles = "files"
	KindURLs  = "urls"
)

// Batch statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Batch is one ingestion request as recorded in the ledger.
type Batch struct {
	ID         string     `json:"id"` // UUID
	Kind       string     `json:"kind"`
	ClientID   string     `json:"client_id"`
	Items      int        `json:"items"`
	Added      int        `json:"added"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	ChunkStats ChunkStats `json:"chunk_stats"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

// ChunkStats summarizes chunk lengths (in runes) produced by a batch.
type ChunkStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}
