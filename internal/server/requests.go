package server

// Request types for WebSocket commands with validation tags.
// These types define the expected input for each command and use
// go-playground/validator struct tags for automatic validation.

// --- Microphone ---

// MicrophoneMuteRequest is the request body for microphone/mute.
type MicrophoneMuteRequest struct {
	Muted *bool `json:"muted" validate:"required"`
}

// --- Settings ---

// SettingsUpdateRequest is the request body for settings/update. Nil fields are left unchanged.
type SettingsUpdateRequest struct {
	AudioInput   *string              `json:"audio_input" validate:"omitempty,max=256"`
	VideoInput   *string              `json:"video_input" validate:"omitempty,max=256"`
	Connectivity *ConnectivityRequest `json:"connectivity" validate:"omitempty"`
}

// ConnectivityRequest replaces the connectivity probe settings.
type ConnectivityRequest struct {
	Endpoints  []string `json:"endpoints" validate:"required,min=1,max=10,dive,required,max=2048,endpoint"`
	Iterations int      `json:"iterations" validate:"omitempty,gte=2,lte=50"`
	TimeoutMs  int64    `json:"timeout_ms" validate:"omitempty,gte=100,lte=60000"`
	DelayMs    int64    `json:"delay_ms" validate:"omitempty,gte=1,lte=10000"`
}
