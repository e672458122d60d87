// Package network measures round-trip latency and jitter to external
// endpoints and classifies the connection as success, warning or failure.
package network

import "math"

// SentinelMs is recorded for an iteration in which no endpoint answered.
const SentinelMs = 999

// Classification thresholds in milliseconds.
const (
	FailurePingMs   = 300
	FailureJitterMs = 100
	WarningPingMs   = 150
	WarningJitterMs = 50
)

// Status is the connectivity verdict.
type Status string

// Connectivity statuses.
const (
	Success Status = "success"
	Warning Status = "warning"
	Failure Status = "failure"
)

// Passed reports whether s is the success case.
func (s Status) Passed() bool {
	return s == Success
}

// Sample is the outcome of one probe iteration.
type Sample struct {
	RTTMs    float64 `json:"rtt_ms"`
	TimedOut bool    `json:"timed_out"`
}

// Stats summarizes one probe run. AvgPingMs and JitterMs are nil when they
// could not be computed.
type Stats struct {
	AvgPingMs    *float64 `json:"avg_ping_ms"`
	JitterMs     *float64 `json:"jitter_ms"`
	Status       Status   `json:"status"`
	Samples      []Sample `json:"samples"`
	ValidSamples int      `json:"valid_samples"`
}

// SamplesFromMillis converts raw round-trip times into samples, treating
// SentinelMs as a timeout.
func SamplesFromMillis(ms []float64) []Sample {
	samples := make([]Sample, len(ms))
	for i, v := range ms {
		samples[i] = Sample{RTTMs: v, TimedOut: v == SentinelMs}
	}
	return samples
}

// ComputeStats discards timed-out samples and computes the rounded mean and
// population standard deviation of the rest. Fewer than two valid samples is
// a Failure without jitter.
func ComputeStats(samples []Sample) Stats {
	stats := Stats{
		Status:  Failure,
		Samples: append([]Sample(nil), samples...),
	}

	var valid []float64
	for _, s := range samples {
		if !s.TimedOut {
			valid = append(valid, s.RTTMs)
		}
	}
	stats.ValidSamples = len(valid)
	if len(valid) == 0 {
		return stats
	}

	var sum float64
	for _, v := range valid {
		sum += v
	}
	mean := sum / float64(len(valid))
	avg := math.Round(mean)
	stats.AvgPingMs = &avg

	if len(valid) < 2 {
		return stats
	}

	var sq float64
	for _, v := range valid {
		sq += (v - mean) * (v - mean)
	}
	jitter := math.Round(math.Sqrt(sq / float64(len(valid))))
	stats.JitterMs = &jitter
	stats.Status = Classify(avg, jitter)
	return stats
}

// Classify maps an average ping and jitter onto a status.
func Classify(avgPingMs, jitterMs float64) Status {
	switch {
	case avgPingMs > FailurePingMs || jitterMs > FailureJitterMs:
		return Failure
	case avgPingMs > WarningPingMs || jitterMs > WarningJitterMs:
		return Warning
	default:
		return Success
	}
}
