//go:build !windows

package capture

import (
	"image"

	"github.com/vova616/screenshot"
)

// screenGrabber uses X11 (xgb) or CoreGraphics through screenshot.
type screenGrabber struct{}

func defaultGrabber() Grabber { return screenGrabber{} }

func (screenGrabber) Bounds() (image.Rectangle, error) { return screenshot.ScreenRect() }

func (screenGrabber) Grab(r image.Rectangle) (*image.RGBA, error) { return screenshot.CaptureRect(r) }
