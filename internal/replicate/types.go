package replicate

// Model identifier and pinned version for the SDXL pipeline.
const (
	SDXLModel        = "stability-ai/sdxl"
	SDXLModelVersion = "39ed52f2a78e934b3ba6e2a89f5b1c712de7dfea535525255b1aa35c5565e08b"
)

// Prediction statuses reported by the provider. All five are valid, normal
// returns from a status fetch.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// IsTerminal reports whether a status ends the prediction lifecycle.
func IsTerminal(status string) bool {
	switch status {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

type createPredictionRequest struct {
	Model   string         `json:"model,omitempty"`
	Version string         `json:"version"`
	Input   map[string]any `json:"input"`
}

// Prediction is the provider's view of one inference job.
type Prediction struct {
	ID      string         `json:"id"`
	Model   string         `json:"model,omitempty"`
	Version string         `json:"version,omitempty"`
	Status  string         `json:"status"`
	Input   map[string]any `json:"input,omitempty"`
	Output  []string       `json:"output,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// FirstOutput returns the first output element, the result image URL for
// single-image generations.
func (p *Prediction) FirstOutput() string {
	if p == nil || len(p.Output) == 0 {
		return ""
	}
	return p.Output[0]
}
