// internal/models/batch.go
package models

import "time"

// BatchState tracks a render batch as a whole.
type BatchState string

const (
	BatchRunning   BatchState = "running"
	BatchCompleted BatchState = "completed"
	BatchCancelled BatchState = "cancelled"
)

// RenderBatch groups the jobs created by one submission.
type RenderBatch struct {
	ID         string     `json:"id" db:"id"`
	TemplateID string     `json:"templateId" db:"template_id"`
	State      BatchState `json:"state" db:"state"`
	JobCount   int        `json:"jobCount" db:"job_count"`
	CreatedAt  time.Time  `json:"createdAt" db:"created_at"`
}

// JobResult is the per-record slot in a batch report, addressed by the
// record's submission index.
type JobResult struct {
	Index        int       `json:"index"`
	Status       JobStatus `json:"status"`
	AssetID      string    `json:"assetId,omitempty"`
	ErrorCode    string    `json:"errorCode,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// BatchReport is a point-in-time snapshot of a batch. Results are ordered
// by submission index regardless of completion order. Degraded is raised
// when storage failures recur across the batch.
type BatchReport struct {
	BatchID   string      `json:"batchId"`
	State     BatchState  `json:"state"`
	Results   []JobResult `json:"results"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	InFlight  int         `json:"inFlight"`
	Degraded  bool        `json:"degraded"`
}

// Done reports whether every job in the batch reached a terminal status.
func (r *BatchReport) Done() bool {
	return r.InFlight == 0
}
