package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/oszuidwest/zwfm-selftest/internal/network"
	"github.com/oszuidwest/zwfm-selftest/internal/selftest"
	"github.com/oszuidwest/zwfm-selftest/internal/types"
)

// API response helpers

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// handleAPIConfig returns the configuration, the devices and the version.
// GET /api/config
func (s *Server) handleAPIConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.writeJSON(w, http.StatusOK, types.APIConfigResponse{
		Config:          s.config.Snapshot(),
		Devices:         s.devices(),
		Platform:        runtime.GOOS,
		FFmpegAvailable: s.ffmpegAvailable,
		Version:         s.version.Info(),
	})
}

// handleAPIDevices returns the available capture devices.
// GET /api/devices
func (s *Server) handleAPIDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.writeJSON(w, http.StatusOK, s.devices())
}

// handleAPIReadiness returns the readiness report.
// GET /api/readiness
func (s *Server) handleAPIReadiness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.writeJSON(w, http.StatusOK, s.session.Readiness.Report())
}

// handleAPINetworkRun runs the connectivity probe and returns its statistics.
// POST /api/network/run
func (s *Server) handleAPINetworkRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	runID, stats, err := s.session.Network.Run(r.Context(), nil)
	switch {
	case errors.Is(err, selftest.ErrAlreadyRunning):
		s.writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, network.ErrNoEndpoints):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	slog.Info("connectivity run finished", "run_id", runID, "status", stats.Status)
	s.writeJSON(w, http.StatusOK, types.NetworkRunResult{RunID: runID, Stats: stats})
}
