package model

// ProgressStatus is the artifact-based classification of a run
type ProgressStatus string

const (
	ProgressProcessing ProgressStatus = "processing"
	ProgressPartial    ProgressStatus = "partial"
	ProgressCompleted  ProgressStatus = "completed"
)

// Progress is what the progress monitor reports for a run
type Progress struct {
	Status         ProgressStatus `json:"status"`
	CompletedFiles []string       `json:"completed_files"`
	TotalFiles     int            `json:"total_files"`
	Run            *Run           `json:"run,omitempty"`
}
