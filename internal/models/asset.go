// internal/models/asset.go
package models

import "time"

// Asset is the metadata row for one rendered output payload. Payload bytes
// live in the blob store under StoragePath; identical payloads share one
// asset via ContentHash and RefCount.
type Asset struct {
	ID          string    `json:"id" db:"id"`
	ContentHash string    `json:"contentHash" db:"content_hash"` // hex SHA-256 of the payload
	Format      string    `json:"format" db:"format"`
	// CreatedByJobID records the job whose render first produced the
	// payload; later dedup hits only reference, never own.
	CreatedByJobID string `json:"createdByJobId,omitempty" db:"created_by_job_id"`
	SizeBytes   int64     `json:"sizeBytes" db:"size_bytes"`
	Width       int       `json:"width" db:"width"`
	Height      int       `json:"height" db:"height"`
	StoragePath string    `json:"storagePath" db:"storage_path"`
	RefCount    int       `json:"refCount" db:"ref_count"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// Payload is an encoded render output on its way into the asset manager.
type Payload struct {
	Bytes  []byte
	Format OutputFormat
	Width  int
	Height int
}
