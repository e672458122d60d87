// Package readiness aggregates the latest device and connectivity results
// into a single "ready for a call" verdict.
package readiness

import (
	"fmt"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-selftest/internal/diagnostic"
	"github.com/oszuidwest/zwfm-selftest/internal/network"
)

// Component identifies one test slot.
type Component string

// Test components, in report order.
const (
	Camera       Component = "camera"
	Microphone   Component = "microphone"
	Connectivity Component = "connectivity"
)

// Components lists every slot in report order.
var Components = []Component{Camera, Microphone, Connectivity}

// Result is the last-known outcome of one component.
type Result struct {
	Component Component `json:"component"`
	Status    string    `json:"status"`
	Passed    bool      `json:"passed"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

// Report is a snapshot of every slot.
type Report struct {
	// Ready is true when at least one component was tested and all tested
	// components passed.
	Ready       bool        `json:"ready"`
	Results     []Result    `json:"results"`
	Failing     []Component `json:"failing"`
	Untested    []Component `json:"untested"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// Evaluator holds one result slot per component. Recording a result only
// overwrites its own slot. It is safe for concurrent use.
type Evaluator struct {
	mu      sync.RWMutex
	results map[Component]Result
	now     func() time.Time
}

// NewEvaluator creates an evaluator with every slot untested.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		results: make(map[Component]Result),
		now:     time.Now,
	}
}

// RecordMicrophone stores the result of a microphone test.
func (e *Evaluator) RecordMicrophone(d diagnostic.DeviceDiagnostic) {
	var detail string
	if d.Level != nil {
		detail = fmt.Sprintf("level %.2f", *d.Level)
	}
	e.record(Microphone, string(d.Status), d.Status.Passed(), detail)
}

// RecordCamera stores the result of a camera test.
func (e *Evaluator) RecordCamera(d diagnostic.WebcamDiagnostic) {
	detail := string(d.Quality)
	if d.Height > 0 {
		detail = fmt.Sprintf("%dx%d %s", d.Width, d.Height, d.Quality)
	}
	e.record(Camera, string(d.Status), d.Status.Passed(), detail)
}

// RecordConnectivity stores the result of a connectivity test.
func (e *Evaluator) RecordConnectivity(s network.Stats) {
	detail := fmt.Sprintf("%d/%d samples", s.ValidSamples, len(s.Samples))
	if s.AvgPingMs != nil {
		detail = fmt.Sprintf("avg %.0f ms", *s.AvgPingMs)
		if s.JitterMs != nil {
			detail += fmt.Sprintf(", jitter %.0f ms", *s.JitterMs)
		}
	}
	e.record(Connectivity, string(s.Status), s.Status.Passed(), detail)
}

func (e *Evaluator) record(c Component, status string, passed bool, detail string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results[c] = Result{
		Component: c,
		Status:    status,
		Passed:    passed,
		Detail:    detail,
		At:        e.now(),
	}
}

// Result returns the last-known result of c.
func (e *Evaluator) Result(c Component) (Result, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.results[c]
	return r, ok
}

// Reset clears every slot.
func (e *Evaluator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	clear(e.results)
}

// Report assembles a snapshot of all slots.
func (e *Evaluator) Report() Report {
	e.mu.RLock()
	defer e.mu.RUnlock()

	report := Report{
		Results:     []Result{},
		Failing:     []Component{},
		Untested:    []Component{},
		GeneratedAt: e.now(),
	}
	for _, c := range Components {
		r, ok := e.results[c]
		if !ok {
			report.Untested = append(report.Untested, c)
			continue
		}
		report.Results = append(report.Results, r)
		if !r.Passed {
			report.Failing = append(report.Failing, c)
		}
	}
	report.Ready = len(report.Results) > 0 && len(report.Failing) == 0
	return report
}
