package app

import (
	"context"
	"fmt"
	"time"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"

	"github.com/soocke/camrec/ui/presenter"
	"github.com/soocke/camrec/ui/view"
)

const (
	tick = 100 * time.Millisecond
)

type app struct {
	c       *AppContainer
	width   int
	height  int
	afterID string
	loop    *presenter.Loop

	pressure *PressureMonitor
	cancel   context.CancelFunc
}

func NewApp(title string, width, height int, c *AppContainer) *app {
	a := &app{c: c, width: width, height: height}

	App.WmTitle(title)
	WmProtocol(App, "WM_DELETE_WINDOW", a.exitHandler)
	WmGeometry(App, fmt.Sprintf("%dx%d+100+100", width, height))
	return a
}

func (a *app) Start() {
	c := a.c
	ctl := c.ControlsPresenter
	c.RootView.Build(view.Handlers{
		OnRecord:  ctl.ToggleRecording,
		OnCancel:  ctl.Cancel,
		OnSwitch:  ctl.SwitchCamera,
		OnZoomIn:  func() { ctl.ZoomBy(1.25) },
		OnZoomOut: func() { ctl.ZoomBy(0.8) },
		OnPhoto:   ctl.Photo,
		OnExit:    a.exitHandler,
	})

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	if err := c.Coordinator.Start(ctx); err != nil {
		c.Logger.Error("capture start failed", "error", err)
		c.Status.SetMessage("Capture unavailable: " + err.Error())
	}
	a.pressure = NewPressureMonitor(c.Coordinator, 2*time.Second, c.Logger)
	go a.pressure.Run(ctx)

	// Observer callbacks are drained on the Tk thread by the loop.
	a.loop = presenter.NewLoop(c.MainLoop, c.RecordingPresenter, c.SessionPresenter, a.scheduleUpdate)
	a.scheduleUpdate()

	App.Wait()
}

func (a *app) exitHandler() {
	// Cancel scheduled after event if any.
	if a.afterID != "" {
		TclAfterCancel(a.afterID)
		a.afterID = ""
	}
	if a.cancel != nil {
		a.cancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.c.Config.FinishTimeout()+5*time.Second)
	defer cancel()
	if err := a.c.Coordinator.Close(ctx); err != nil {
		a.c.Logger.Error("shutdown", "error", err)
	}
	// Events produced while finishing the last recording.
	a.c.MainLoop.Drain()
	Destroy(App)
}

func (a *app) scheduleUpdate() {
	// Schedule the next update using TclAfter to stay on Tk's event loop thread.
	a.afterID = TclAfter(tick, func() {
		defer func() {
			if r := recover(); r != nil {
				a.c.Logger.Error("ui tick panic", "error", r)
				a.scheduleUpdate()
			}
		}()
		a.loop.Tick()
	})
}
