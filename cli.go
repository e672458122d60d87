package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/oszuidwest/zwfm-selftest/internal/diagnostic"
	"github.com/oszuidwest/zwfm-selftest/internal/network"
	"github.com/oszuidwest/zwfm-selftest/internal/readiness"
	"github.com/oszuidwest/zwfm-selftest/internal/selftest"
)

// liveInterval is the refresh rate of the live terminal line.
const liveInterval = 250 * time.Millisecond

const levelBarWidth = 30

// runMicrophone meters the microphone for d and prints the final diagnostic.
// A refused device is a result, not an error.
func runMicrophone(ctx context.Context, s *selftest.Session, d time.Duration, w io.Writer, live bool) error {
	mic := s.Microphone
	if err := mic.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		fmt.Fprintln(w, formatMicrophone(mic.Snapshot().Diagnostic))
		return nil
	}

	err := waitFor(ctx, d, func() bool {
		if live {
			fmt.Fprintf(w, "\r%s", formatMicrophone(mic.Snapshot().Diagnostic))
		}
		return false
	})
	if live {
		fmt.Fprint(w, "\r\033[K")
	}

	final := mic.Snapshot().Diagnostic
	if stopErr := mic.Stop(); stopErr != nil && !errors.Is(stopErr, selftest.ErrNotRunning) {
		return stopErr
	}
	if err != nil {
		return err
	}
	// Stopping before the first tick records a status without a level.
	if res, ok := s.Readiness.Result(readiness.Microphone); ok && res.Status != string(final.Status) {
		final = diagnostic.ErrorDiagnostic(diagnostic.Status(res.Status))
	}
	fmt.Fprintln(w, formatMicrophone(final))
	return nil
}

// runCamera opens the camera and waits up to d for its resolution.
func runCamera(ctx context.Context, s *selftest.Session, d time.Duration, w io.Writer) error {
	cam := s.Camera
	if err := cam.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		fmt.Fprintln(w, formatCamera(cam.Snapshot().Diagnostic))
		return nil
	}

	err := waitFor(ctx, d, func() bool {
		snap := cam.Snapshot()
		return snap.State != selftest.StateRunning || snap.Diagnostic.Height > 0
	})

	final := cam.Snapshot().Diagnostic
	if stopErr := cam.Stop(); stopErr != nil && !errors.Is(stopErr, selftest.ErrNotRunning) {
		return stopErr
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(w, formatCamera(final))
	return nil
}

// runNetwork runs the connectivity probe and prints its statistics.
func runNetwork(ctx context.Context, s *selftest.Session, w io.Writer, live bool) error {
	var progress func(int)
	if live {
		progress = func(pct int) { fmt.Fprintf(w, "\rconnectivity: measuring %3d%%", pct) }
	}
	_, stats, err := s.Network.Run(ctx, progress)
	if live {
		fmt.Fprint(w, "\r\033[K")
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(w, formatNetwork(stats))
	return nil
}

// waitFor polls until done reports true, d elapses or ctx ends.
func waitFor(ctx context.Context, d time.Duration, done func() bool) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	ticker := time.NewTicker(liveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case <-ticker.C:
			if done() {
				return nil
			}
		}
	}
}

func formatMicrophone(d diagnostic.DeviceDiagnostic) string {
	line := "microphone:   " + statusText(string(d.Status), d.Status.Passed())
	if d.Level == nil {
		return line
	}
	line += fmt.Sprintf("  [%s] %.2f", levelBar(*d.Level, levelBarWidth), *d.Level)
	if d.RMSDB != nil && d.PeakDB != nil {
		line += fmt.Sprintf("  rms %.1f dBFS  peak %.1f dBFS", *d.RMSDB, *d.PeakDB)
	}
	return line
}

func formatCamera(d diagnostic.DeviceDiagnostic) string {
	line := "camera:       " + statusText(string(d.Status), d.Status.Passed())
	if d.Height > 0 {
		line += fmt.Sprintf("  %dx%d", d.Width, d.Height)
	}
	if d.Quality != "" {
		line += fmt.Sprintf(" (%s)", d.Quality)
	}
	return line
}

func formatNetwork(s network.Stats) string {
	line := "connectivity: " + statusText(string(s.Status), s.Status.Passed())
	if s.AvgPingMs != nil {
		line += fmt.Sprintf("  avg %.0f ms", *s.AvgPingMs)
	}
	if s.JitterMs != nil {
		line += fmt.Sprintf("  jitter %.0f ms", *s.JitterMs)
	}
	return line + fmt.Sprintf("  (%d/%d answered)", s.ValidSamples, len(s.Samples))
}

// levelBar draws level in [0, 1] as a bar of width cells.
func levelBar(level float64, width int) string {
	n := int(math.Round(math.Max(0, math.Min(1, level)) * float64(width)))
	return strings.Repeat("#", n) + strings.Repeat("-", width-n)
}

func statusText(text string, ok bool) string {
	if text == "" {
		text = "-"
	}
	if color.NoColor {
		return text
	}
	if ok {
		return color.New(color.FgGreen).Sprint(text)
	}
	return color.New(color.FgHiRed).Sprint(text)
}
