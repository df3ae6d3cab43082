package core

import "time"

// Pipeline constants
const (
	ImageSize       = 224
	TopK            = 3
	MinProbability  = 0.0001
	UnknownLabel    = "unknown"
	DefaultChannels = 3
)

// Server defaults
const (
	DefaultPort           = "8000"
	DefaultGinMode        = "release"
	DefaultModelsDir      = "models"
	DefaultLabelsPath     = "class_indices.json"
	DefaultFetchTimeout   = 10 * time.Second
	DefaultMaxUploadBytes = 10 << 20
	DefaultInputLayout    = LayoutNHWC
	ShutdownTimeout       = 30 * time.Second
	ReadHeaderTimeout     = 10 * time.Second
)

// Tensor layouts
const (
	LayoutNHWC = "NHWC"
	LayoutNCHW = "NCHW"
)

// HeaderRequestID carries the per-request ID in both directions.
const HeaderRequestID = "X-Request-ID"
