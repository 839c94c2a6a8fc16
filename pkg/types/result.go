package types

import (
	"fmt"
	"time"
)

// Status is the outcome of validating one model.
type Status string

const (
	StatusPass Status = "Pass"
	StatusFail Status = "Fail"
)

// DiffKind tags the variant held by a DiffResult.
type DiffKind string

const (
	DiffEqual           DiffKind = "equal"
	DiffShapeMismatch   DiffKind = "shape_mismatch"
	DiffContentMismatch DiffKind = "content_mismatch"
)

// Shape is the (rows, cols) size of a projected dataset.
type Shape struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// Cells returns rows × cols.
func (s Shape) Cells() int {
	return s.Rows * s.Cols
}

// String renders the shape as RxC.
func (s Shape) String() string {
	return fmt.Sprintf("%dX%d", s.Rows, s.Cols)
}

// RowMismatch is one aligned row position whose values differ.
type RowMismatch struct {
	// Row is the dense 0-based position after projection and sorting
	Row int `json:"row"`
	// Columns lists the differing columns in projection order
	Columns []string `json:"columns"`
	// Reference holds the reference values of Columns
	Reference []interface{} `json:"reference"`
	// Candidate holds the candidate values of Columns
	Candidate []interface{} `json:"candidate"`
}

// DiffResult is the outcome of comparing two projected datasets.
// Left is the reference side, Right the candidate side.
type DiffResult struct {
	Kind DiffKind `json:"kind"`

	// Set for DiffShapeMismatch
	Left  Shape `json:"left"`
	Right Shape `json:"right"`

	// Set for DiffContentMismatch
	Sample          []RowMismatch `json:"sample,omitempty"`
	TotalMismatches int           `json:"total_mismatches"`
}

// Equal reports whether the datasets compared equal.
func (r DiffResult) Equal() bool {
	return r.Kind == DiffEqual
}

// ModelOutcome is the validation outcome for one model.
type ModelOutcome struct {
	Model   string `json:"model"`
	Status  Status `json:"status"`
	Summary string `json:"summary"`
	// Detail is the per-row detail; its length becomes the artifact record count
	Detail []string `json:"detail"`
	// Drifted lists the columns that differed, sorted
	Drifted []string `json:"drifted,omitempty"`
	// Mismatches is the total number of mismatching rows (data mode)
	Mismatches int `json:"mismatches,omitempty"`
}

// Artifact is the persisted record of one model's outcome.
type Artifact struct {
	RunID       string    `json:"run_id"`
	Model       string    `json:"model"`
	Status      Status    `json:"status"`
	Summary     string    `json:"summary"`
	Detail      []string  `json:"detail"`
	RecordCount int       `json:"record_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewArtifact converts an outcome into its persisted form.
func NewArtifact(runID string, o ModelOutcome, now time.Time) Artifact {
	detail := make([]string, len(o.Detail))
	copy(detail, o.Detail)
	return Artifact{
		RunID:       runID,
		Model:       o.Model,
		Status:      o.Status,
		Summary:     o.Summary,
		Detail:      detail,
		RecordCount: len(detail),
		CreatedAt:   now,
	}
}

// Verdict is the final boolean outcome of a run.
type Verdict struct {
	RunID          string    `json:"run_id"`
	Pass           bool      `json:"pass"`
	Policy         string    `json:"policy"`
	Baseline       int       `json:"baseline"`
	DistinctCounts []int     `json:"distinct_counts"`
	Artifacts      int       `json:"artifacts"`
	EvaluatedAt    time.Time `json:"evaluated_at"`
}

// Result renders the verdict as the single-row boolean value (TRUE/FALSE).
func (v Verdict) Result() string {
	if v.Pass {
		return "TRUE"
	}
	return "FALSE"
}
