package capture

import (
	"errors"
	"fmt"
	"image"

	"github.com/soocke/camrec/domain/media"
)

// ErrUnsupported is wrapped by DeviceConfigurationError when the device
// lacks a requested capability.
var ErrUnsupported = errors.New("not supported by device")

// ErrAudioUnavailable is returned in builds without an audio backend.
var ErrAudioUnavailable = errors.New("audio capture not available in this build")

// FrameSink receives samples and interruptions from a device. DeliverFrame
// must not block for long; it is called on the device's own goroutine.
type FrameSink interface {
	DeliverFrame(sample media.FrameSample)
	DeviceInterrupted(err error)
}

// Capabilities are the ranges a video device supports.
type Capabilities struct {
	MinFrameRate int
	MaxFrameRate int
	MinZoom      float64
	MaxZoom      float64
	Torch        bool
	Focus        bool
	Bounds       image.Rectangle
}

// ClampFrameRate limits fps to the supported range.
func (c Capabilities) ClampFrameRate(fps int) int {
	if c.MinFrameRate > 0 && fps < c.MinFrameRate {
		return c.MinFrameRate
	}
	if c.MaxFrameRate > 0 && fps > c.MaxFrameRate {
		return c.MaxFrameRate
	}
	return fps
}

// ClampZoom limits factor to the supported range.
func (c Capabilities) ClampZoom(factor float64) float64 {
	if factor < c.MinZoom {
		return c.MinZoom
	}
	if c.MaxZoom > 0 && factor > c.MaxZoom {
		return c.MaxZoom
	}
	return factor
}

// DeviceConfiguration is the active configuration of the video device. A
// configuration is never mutated once applied; changes build a new value.
type DeviceConfiguration struct {
	Position     media.Position
	Zoom         float64
	FrameRate    int
	MinFrameRate int
	MaxFrameRate int
	Torch        bool
	Focus        media.Point
	Width        int
	Height       int
}

// VideoDevice produces video samples for one position.
type VideoDevice interface {
	Position() media.Position
	Capabilities() Capabilities
	// Apply switches the device to cfg. On error the previous
	// configuration stays in effect.
	Apply(cfg DeviceConfiguration) error
	Start(sink FrameSink) error
	Stop() error
}

// DeviceProvider opens the video device for a position.
type DeviceProvider interface {
	OpenVideo(pos media.Position) (VideoDevice, error)
}

// AudioSource produces audio samples.
type AudioSource interface {
	Format() media.AudioFormat
	Start(sink FrameSink) error
	Stop() error
	Close() error
}

// DeviceConfigurationError reports a failed configuration change. The
// device keeps its previous configuration.
type DeviceConfigurationError struct {
	Op  string
	Err error
}

func (e *DeviceConfigurationError) Error() string {
	return fmt.Sprintf("device configuration %s: %v", e.Op, e.Err)
}

func (e *DeviceConfigurationError) Unwrap() error { return e.Err }

// InterruptionError reports that a device stopped delivering samples for a
// reason outside the program's control.
type InterruptionError struct {
	Source string
	Err    error
}

func (e *InterruptionError) Error() string {
	return fmt.Sprintf("%s interrupted: %v", e.Source, e.Err)
}

func (e *InterruptionError) Unwrap() error { return e.Err }

// PressureLevel is the system pressure reported to ApplyPressure.
type PressureLevel int

const (
	PressureNominal PressureLevel = iota
	PressureFair
	PressureSerious
	PressureCritical
	PressureShutdown
)

func (p PressureLevel) String() string {
	switch p {
	case PressureNominal:
		return "nominal"
	case PressureFair:
		return "fair"
	case PressureSerious:
		return "serious"
	case PressureCritical:
		return "critical"
	case PressureShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// ParsePressure parses a level name.
func ParsePressure(s string) (PressureLevel, error) {
	for p := PressureNominal; p <= PressureShutdown; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	return PressureNominal, fmt.Errorf("unknown pressure level %q", s)
}
