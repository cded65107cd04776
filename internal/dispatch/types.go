package dispatch

import (
	"time"

	"github.com/google/uuid"
)

// Status is the outcome of one dispatch.
type Status string

const (
	StatusCompleted Status = "completed" // every endpoint succeeded
	StatusPartial   Status = "partial"   // some endpoints failed
	StatusFailed    Status = "failed"    // every endpoint failed
	StatusNoMatch   Status = "no_match"  // address resolved to nothing
)

// Sources of a dispatch request.
const (
	SourceAPI  = "api"
	SourceMQTT = "mqtt"
	SourceCLI  = "cli"
)

// Execution records one ResolveAndDispatch call.
type Execution struct {
	ID         string           `json:"id"`
	Address    string           `json:"address"`
	Source     string           `json:"source"`
	Status     Status           `json:"status"`
	Results    []EndpointResult `json:"results"`
	Error      string           `json:"error,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	DurationMS int64            `json:"duration_ms"`
}

// EndpointResult is the outcome for one endpoint of an execution.
type EndpointResult struct {
	Endpoint   string `json:"endpoint"`
	Kind       string `json:"kind"`
	Commands   int    `json:"commands"`
	OK         bool   `json:"ok"`
	Response   string `json:"response,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Failed returns the number of endpoints that failed.
func (e *Execution) Failed() int {
	n := 0
	for _, r := range e.Results {
		if !r.OK {
			n++
		}
	}
	return n
}

// GenerateID returns a new execution id.
func GenerateID() string {
	return "dsp-" + uuid.NewString()
}

// rollup derives the final status from the per-endpoint results.
func rollup(results []EndpointResult) Status {
	if len(results) == 0 {
		return StatusNoMatch
	}
	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
		}
	}
	switch {
	case failed == 0:
		return StatusCompleted
	case failed == len(results):
		return StatusFailed
	default:
		return StatusPartial
	}
}
