package server

import (
	"cmp"
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/oszuidwest/zwfm-selftest/internal/config"
	"github.com/oszuidwest/zwfm-selftest/internal/selftest"
	"github.com/oszuidwest/zwfm-selftest/internal/types"
)

// WSCommand is a command received from a WebSocket client.
type WSCommand struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// CommandHandler processes WebSocket commands.
type CommandHandler struct {
	cfg     *config.Config
	session *selftest.Session
	devices func() types.DeviceList
}

// NewCommandHandler creates a new command handler. devices lists the
// available capture devices on demand.
func NewCommandHandler(cfg *config.Config, session *selftest.Session, devices func() types.DeviceList) *CommandHandler {
	return &CommandHandler{
		cfg:     cfg,
		session: session,
		devices: devices,
	}
}

// Handle processes a WebSocket command and performs the requested action.
// Commands use slash-style format: namespace/action (e.g., "microphone/start").
// ctx is the lifetime of the connection; pending device requests and
// connectivity runs are abandoned when it ends.
func (h *CommandHandler) Handle(ctx context.Context, cmd WSCommand, send chan<- any, triggerStatusUpdate func()) {
	namespace, action, _ := strings.Cut(cmd.Type, "/")

	switch namespace {
	case "microphone":
		h.handleMicrophone(ctx, action, cmd, send)
	case "camera":
		h.handleCamera(ctx, action, cmd, send)
	case "network":
		h.handleNetwork(ctx, action, cmd, send)
	case "readiness":
		h.handleReadiness(action, cmd, send)
	case "devices":
		h.handleDevices(action, cmd, send)
	case "settings":
		h.handleSettings(action, cmd, send)
	case "status":
		// Status is sent automatically, but explicit get triggers immediate update
		slog.Debug("status/get received, status update will be triggered")
	default:
		slog.Warn("unknown WebSocket command", "type", cmd.Type)
	}

	triggerStatusUpdate()
}

// --- Namespace handlers ---

// handleMicrophone routes microphone/* commands
func (h *CommandHandler) handleMicrophone(ctx context.Context, action string, cmd WSCommand, send chan<- any) {
	mic := h.session.Microphone
	switch action {
	case "start":
		HandleActionAsync(cmd, send, func() (any, error) {
			err := mic.Start(ctx)
			return mic.Snapshot(), err
		})
	case "stop":
		h.stopTest(cmd, send, mic.Stop, mic.Snapshot)
	case "mute":
		HandleCommand(cmd, send, func(req *MicrophoneMuteRequest) error {
			return mic.SetMuted(*req.Muted)
		})
	default:
		slog.Warn("unknown microphone action", "action", action)
	}
}

// handleCamera routes camera/* commands
func (h *CommandHandler) handleCamera(ctx context.Context, action string, cmd WSCommand, send chan<- any) {
	cam := h.session.Camera
	switch action {
	case "start":
		HandleActionAsync(cmd, send, func() (any, error) {
			err := cam.Start(ctx)
			return cam.Snapshot(), err
		})
	case "stop":
		h.stopTest(cmd, send, cam.Stop, cam.Snapshot)
	default:
		slog.Warn("unknown camera action", "action", action)
	}
}

// stopTest stops a device test and replies with its final snapshot.
func (h *CommandHandler) stopTest(cmd WSCommand, send chan<- any, stop func() error, snapshot func() selftest.Snapshot) {
	if err := stop(); err != nil {
		SendError(send, cmd.Type, err)
		return
	}
	SendSuccess(send, cmd.Type, snapshot())
}

// handleNetwork routes network/* commands
func (h *CommandHandler) handleNetwork(ctx context.Context, action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "run":
		HandleActionAsync(cmd, send, func() (any, error) {
			runID, stats, err := h.session.Network.Run(ctx, func(pct int) {
				SendData(send, types.WSNetworkProgress{Type: "network_progress", Percent: pct})
			})
			if err != nil {
				return nil, err
			}
			return types.NetworkRunResult{RunID: runID, Stats: stats}, nil
		})
	case "get":
		stats, ok := h.session.Network.Last()
		if !ok {
			SendSuccess(send, cmd.Type, nil)
			return
		}
		SendSuccess(send, cmd.Type, stats)
	default:
		slog.Warn("unknown network action", "action", action)
	}
}

// handleReadiness routes readiness/* commands
func (h *CommandHandler) handleReadiness(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "get":
		SendSuccess(send, cmd.Type, h.session.Readiness.Report())
	case "reset":
		h.session.Readiness.Reset()
		SendSuccess(send, cmd.Type, h.session.Readiness.Report())
	default:
		slog.Warn("unknown readiness action", "action", action)
	}
}

// handleDevices routes devices/* commands
func (h *CommandHandler) handleDevices(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "list":
		HandleActionAsync(cmd, send, func() (any, error) {
			return h.devices(), nil
		})
	default:
		slog.Warn("unknown devices action", "action", action)
	}
}

// handleSettings routes settings/* commands
func (h *CommandHandler) handleSettings(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "get":
		SendSuccess(send, cmd.Type, h.cfg.Snapshot())
	case "update":
		HandleCommand(cmd, send, h.applySettings)
	default:
		slog.Warn("unknown settings action", "action", action)
	}
}

// applySettings persists the fields present in req. Device changes apply to
// the next test start.
func (h *CommandHandler) applySettings(req *SettingsUpdateRequest) error {
	if req.AudioInput != nil {
		slog.Info("settings/update: changing audio input", "input", *req.AudioInput)
		if err := h.cfg.SetAudioInput(*req.AudioInput); err != nil {
			return err
		}
	}
	if req.VideoInput != nil {
		slog.Info("settings/update: changing video input", "input", *req.VideoInput)
		if err := h.cfg.SetVideoInput(*req.VideoInput); err != nil {
			return err
		}
	}
	if c := req.Connectivity; c != nil {
		cur := h.cfg.Snapshot()
		if err := h.cfg.SetConnectivity(config.ConnectivityConfig{
			Endpoints:  c.Endpoints,
			Iterations: cmp.Or(c.Iterations, cur.Iterations),
			TimeoutMs:  cmp.Or(c.TimeoutMs, cur.ProbeTimeoutMs),
			DelayMs:    cmp.Or(c.DelayMs, cur.ProbeDelayMs),
		}); err != nil {
			return err
		}
	}
	return nil
}
