package domain

// Stage names the pipeline stages in execution order.
type Stage string

const (
	StageFinalize Stage = "finalize"
	StagePrice    Stage = "price"
	StageRender   Stage = "render"
)

// ProgressEventType classifies pipeline progress events.
type ProgressEventType string

const (
	ProgressStageStart    ProgressEventType = "stage_start"
	ProgressStageProgress ProgressEventType = "stage_progress"
	ProgressComplete      ProgressEventType = "complete"
	ProgressFailed        ProgressEventType = "failed"
)

// ProgressEvent is one event on a pipeline run's progress stream.
// Complete and Failed are terminal; the stream closes after either.
type ProgressEvent struct {
	Type    ProgressEventType `json:"type"`
	Stage   Stage             `json:"stage,omitempty"`
	Message string            `json:"message,omitempty"`
	Result  *PipelineResult   `json:"result,omitempty"` // type="complete"
	Error   string            `json:"error,omitempty"`  // type="failed"
}

// PipelineResult is the final output of a pipeline run.
type PipelineResult struct {
	Pricing  PricingResult `json:"pricing"`
	Document string        `json:"document"`
}
