// internal/models/job.go
package models

import "time"

// JobStatus tracks a render job through its pipeline stages.
type JobStatus string

const (
	JobPending     JobStatus = "pending"
	JobResolving   JobStatus = "resolving"
	JobCompositing JobStatus = "compositing"
	JobPersisting  JobStatus = "persisting"
	JobSucceeded   JobStatus = "succeeded"
	JobFailed      JobStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// RenderJob is one record's unit of work within a batch. Index is the
// record's position in the submitted batch and orders all reporting.
type RenderJob struct {
	ID           string     `json:"id" db:"id"`
	BatchID      string     `json:"batchId" db:"batch_id"`
	TemplateID   string     `json:"templateId" db:"template_id"`
	Index        int        `json:"index" db:"record_index"`
	Status       JobStatus  `json:"status" db:"status"`
	Record       DataRecord `json:"-" db:"-"`
	AssetID      string     `json:"assetId,omitempty" db:"asset_id"`
	ErrorCode    string     `json:"errorCode,omitempty" db:"error_code"`
	ErrorMessage string     `json:"errorMessage,omitempty" db:"error_message"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" db:"updated_at"`
}
