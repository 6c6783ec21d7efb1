package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/soocke/camrec/domain/media"
)

// Dispatcher forwards events to the current observer through an Executor.
// It implements Observer itself, so producers can call it from any goroutine.
type Dispatcher struct {
	exec   Executor
	logger *slog.Logger

	mu  sync.RWMutex
	obs Observer
}

// NewDispatcher returns a dispatcher posting to exec. A nil observer is
// replaced by NopObserver.
func NewDispatcher(exec Executor, obs Observer, logger *slog.Logger) *Dispatcher {
	if obs == nil {
		obs = NopObserver{}
	}
	return &Dispatcher{exec: exec, obs: obs, logger: logger}
}

// SetObserver swaps the observer for subsequently posted events.
func (d *Dispatcher) SetObserver(obs Observer) {
	if obs == nil {
		obs = NopObserver{}
	}
	d.mu.Lock()
	d.obs = obs
	d.mu.Unlock()
}

func (d *Dispatcher) observer() Observer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.obs
}

func (d *Dispatcher) post(event string, fn func(Observer)) {
	if d.logger != nil {
		d.logger.Debug("event", "name", event)
	}
	d.exec.Post(func() { fn(d.observer()) })
}

func (d *Dispatcher) OnWillBegin(t media.Target) {
	d.post("will_begin", func(o Observer) { o.OnWillBegin(t) })
}

func (d *Dispatcher) OnBegin(t media.Target) {
	d.post("begin", func(o Observer) { o.OnBegin(t) })
}

func (d *Dispatcher) OnDurationUpdate(elapsed time.Duration) {
	d.exec.Post(func() { d.observer().OnDurationUpdate(elapsed) })
}

func (d *Dispatcher) OnStop(t media.Target) {
	d.post("stop", func(o Observer) { o.OnStop(t) })
}

func (d *Dispatcher) OnFinish(t media.Target) {
	d.post("finish", func(o Observer) { o.OnFinish(t) })
}

func (d *Dispatcher) OnFail(err error) {
	d.post("fail", func(o Observer) { o.OnFail(err) })
}

func (d *Dispatcher) OnCancel(t media.Target) {
	d.post("cancel", func(o Observer) { o.OnCancel(t) })
}

func (d *Dispatcher) OnCameraSwitch(pos media.Position) {
	d.post("camera_switch", func(o Observer) { o.OnCameraSwitch(pos) })
}

func (d *Dispatcher) OnFocus(p media.Point) {
	d.post("focus", func(o Observer) { o.OnFocus(p) })
}

func (d *Dispatcher) OnZoomChange(factor float64) {
	d.post("zoom", func(o Observer) { o.OnZoomChange(factor) })
}

func (d *Dispatcher) OnInterrupt(err error) {
	d.post("interrupt", func(o Observer) { o.OnInterrupt(err) })
}

func (d *Dispatcher) OnWillCaptureImage() {
	d.post("will_capture_image", func(o Observer) { o.OnWillCaptureImage() })
}

func (d *Dispatcher) OnCaptureImage(t media.Target) {
	d.post("capture_image", func(o Observer) { o.OnCaptureImage(t) })
}

var _ Observer = (*Dispatcher)(nil)
