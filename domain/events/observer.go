// Package events delivers recording lifecycle notifications to an observer on
// a single designated goroutine.
package events

import (
	"time"

	"github.com/soocke/camrec/domain/media"
)

// Observer receives lifecycle notifications. All methods are called from the
// dispatcher's executor, never concurrently.
type Observer interface {
	OnWillBegin(target media.Target)
	OnBegin(target media.Target)
	OnDurationUpdate(elapsed time.Duration)
	// OnStop fires when Finish is accepted, before the writer has flushed.
	OnStop(target media.Target)
	OnFinish(target media.Target)
	OnFail(err error)
	OnCancel(target media.Target)
	OnCameraSwitch(pos media.Position)
	OnFocus(p media.Point)
	OnZoomChange(factor float64)
	OnInterrupt(err error)
	OnWillCaptureImage()
	OnCaptureImage(target media.Target)
}

// NopObserver implements every Observer method as a no-op. Embed it to
// handle only the events you need.
type NopObserver struct{}

func (NopObserver) OnWillBegin(media.Target)       {}
func (NopObserver) OnBegin(media.Target)           {}
func (NopObserver) OnDurationUpdate(time.Duration) {}
func (NopObserver) OnStop(media.Target)            {}
func (NopObserver) OnFinish(media.Target)          {}
func (NopObserver) OnFail(error)                   {}
func (NopObserver) OnCancel(media.Target)          {}
func (NopObserver) OnCameraSwitch(media.Position)  {}
func (NopObserver) OnFocus(media.Point)            {}
func (NopObserver) OnZoomChange(float64)           {}
func (NopObserver) OnInterrupt(error)              {}
func (NopObserver) OnWillCaptureImage()            {}
func (NopObserver) OnCaptureImage(media.Target)    {}

var _ Observer = NopObserver{}
