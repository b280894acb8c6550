package prediction

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/imageforge/sdxl-playground/server/internal/gallery"
	"github.com/imageforge/sdxl-playground/server/internal/params"
	"github.com/imageforge/sdxl-playground/server/internal/replicate"
)

// ErrGenericGeneration is the only error text shown to users. Raw provider
// errors never leave the poller.
const ErrGenericGeneration = "Error generating the image, please try again"

// PollInterval is the fixed status-check cadence. Not configurable by input.
const PollInterval = time.Second

// DefaultDimension is used for the stored image when the originating request
// is no longer available.
const DefaultDimension = 300

// State of the prediction lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StatePolling    State = "polling"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Gateway is the provider boundary the poller drives: one submission call and
// one status call.
type Gateway interface {
	CreatePrediction(ctx context.Context, input map[string]any) (*replicate.Prediction, error)
	GetPrediction(ctx context.Context, predictionID string) (*replicate.Prediction, error)
}

// GalleryAppender receives the single append emitted per successful job.
type GalleryAppender interface {
	Add(image gallery.GeneratedImage)
}

// JobRecorder persists job records when a database is configured. May be nil.
type JobRecorder interface {
	AddJob(predictionID, prompt, mode, status string) (*gallery.GenerationJob, error)
	UpdateJobStatus(predictionID, status, errorMsg string) error
}

// Poller owns the lifecycle of at most one in-flight prediction: submit, poll
// at a fixed interval, resolve to a terminal state exactly once. The loop's
// cancel func doubles as the mutual-exclusion token: while it is non-nil a
// polling loop is live and no second loop may start.
type Poller struct {
	gateway Gateway
	gallery GalleryAppender
	jobs    JobRecorder

	interval time.Duration

	mu       sync.Mutex
	state    State
	handle   *replicate.Prediction
	request  *params.GenerationRequest
	output   string
	errMsg   string
	fetching bool

	stopLoop context.CancelFunc
	// session increments on every reset; ticks from a superseded loop carry a
	// stale session and must not mutate state.
	session uint64
}

func NewPoller(gateway Gateway, gal GalleryAppender, jobs JobRecorder) *Poller {
	return &Poller{
		gateway:  gateway,
		gallery:  gal,
		jobs:     jobs,
		interval: PollInterval,
		state:    StateIdle,
	}
}

// Snapshot is the poller's observable state.
type Snapshot struct {
	State        State  `json:"state"`
	Fetching     bool   `json:"fetching"`
	PredictionID string `json:"predictionId,omitempty"`
	Status       string `json:"status,omitempty"`
	Output       string `json:"output,omitempty"`
	Error        string `json:"error,omitempty"`
}

func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := Snapshot{
		State:    p.state,
		Fetching: p.fetching,
		Output:   p.output,
		Error:    p.errMsg,
	}
	if p.handle != nil {
		snap.PredictionID = p.handle.ID
		snap.Status = p.handle.Status
	}
	return snap
}

// StartPrediction begins a new lifecycle. Any prior terminal state (or live
// loop) is cleared first; prior output and error are always reset. Submission
// failures do not propagate: they resolve the poller to FAILED with the fixed
// user message. The returned error only reports invalid requests.
func (p *Poller) StartPrediction(ctx context.Context, req params.GenerationRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	p.clearLoopLocked()
	p.session++
	sess := p.session
	p.state = StateSubmitting
	p.fetching = true
	p.output = ""
	p.errMsg = ""
	p.handle = nil
	p.request = &req
	p.mu.Unlock()

	input := params.Resolve(req)
	pred, err := p.gateway.CreatePrediction(ctx, input)

	p.mu.Lock()
	defer p.mu.Unlock()
	if sess != p.session {
		// Superseded by a newer start or teardown while the call was out.
		return nil
	}
	if err != nil {
		log.Printf("prediction: submission failed: %v", err)
		p.failLocked()
		return nil
	}

	p.handle = pred
	p.state = StatePolling
	if p.jobs != nil {
		if _, err := p.jobs.AddJob(pred.ID, req.Prompt, string(req.Mode), pred.Status); err != nil {
			log.Printf("prediction: failed to record job %s: %v", pred.ID, err)
		}
	}
	p.startLoopLocked(sess, pred.ID)
	return nil
}

// Close stops any live polling loop deterministically. No tick fires and no
// state mutation happens after Close returns.
func (p *Poller) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearLoopLocked()
	p.session++
}

// startLoopLocked spawns the polling loop unless one is already live.
func (p *Poller) startLoopLocked(sess uint64, predictionID string) {
	if p.stopLoop != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	p.stopLoop = cancel
	go p.run(loopCtx, sess, predictionID)
}

func (p *Poller) run(ctx context.Context, sess uint64, predictionID string) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pred, err := p.gateway.GetPrediction(ctx, predictionID)
		if p.applyTick(sess, pred, err) {
			return
		}
	}
}

// applyTick folds one status response into the state machine. It reports true
// when the loop must stop. Ticks arriving after the loop was cleared or
// superseded mutate nothing.
func (p *Poller) applyTick(sess uint64, pred *replicate.Prediction, err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sess != p.session || p.stopLoop == nil {
		return true
	}
	if err != nil {
		log.Printf("prediction: status fetch failed: %v", err)
		p.failLocked()
		return true
	}

	switch pred.Status {
	case replicate.StatusSucceeded:
		url := pred.FirstOutput()
		if url == "" {
			p.failLocked()
			return true
		}
		p.succeedLocked(pred.ID, url)
		return true
	case replicate.StatusStarting, replicate.StatusProcessing:
		p.handle = pred
		return false
	case replicate.StatusFailed, replicate.StatusCanceled:
		p.failLocked()
		return true
	default:
		// Unknown status values are treated as still in flight.
		p.handle = pred
		return false
	}
}

func (p *Poller) succeedLocked(predictionID, url string) {
	p.clearLoopLocked()
	p.state = StateSucceeded
	p.output = url
	p.errMsg = ""
	p.fetching = false
	p.handle = nil

	dims := gallery.Dimensions{Width: DefaultDimension, Height: DefaultDimension}
	if p.request != nil {
		if p.request.Width > 0 {
			dims.Width = p.request.Width
		}
		if p.request.Height > 0 {
			dims.Height = p.request.Height
		}
	}
	p.gallery.Add(gallery.GeneratedImage{URL: url, Dimensions: dims})

	if p.jobs != nil {
		if err := p.jobs.UpdateJobStatus(predictionID, replicate.StatusSucceeded, ""); err != nil {
			log.Printf("prediction: failed to update job %s: %v", predictionID, err)
		}
	}
}

func (p *Poller) failLocked() {
	var predictionID string
	if p.handle != nil {
		predictionID = p.handle.ID
	}

	p.clearLoopLocked()
	p.state = StateFailed
	p.errMsg = ErrGenericGeneration
	p.fetching = false
	p.handle = nil

	if p.jobs != nil && predictionID != "" {
		if err := p.jobs.UpdateJobStatus(predictionID, replicate.StatusFailed, ErrGenericGeneration); err != nil {
			log.Printf("prediction: failed to update job %s: %v", predictionID, err)
		}
	}
}

func (p *Poller) clearLoopLocked() {
	if p.stopLoop != nil {
		p.stopLoop()
		p.stopLoop = nil
	}
}
