package view

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/soocke/camrec/config"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// Handlers are invoked on user actions.
type Handlers struct {
	OnRecord  func()
	OnCancel  func()
	OnSwitch  func()
	OnZoomIn  func()
	OnZoomOut func()
	OnPhoto   func()
	OnExit    func()
}

// RootView composes the top-level application layout and wires UI callbacks.
// It owns high-level subviews but exposes minimal exported fields for presenters.
type RootView struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger

	// Subviews
	Session     SessionStats
	ConfigPanel ConfigPanel

	// Widgets
	StateLabel   *LabelWidget
	MessageLabel *LabelWidget
	CameraLabel  *LabelWidget
	recordBtn    *ButtonWidget
	cancelBtn    *ButtonWidget
	switchBtn    *ButtonWidget
}

func NewRootView(cfg *config.Config, cfgPath string, logger *slog.Logger) *RootView {
	return &RootView{cfg: cfg, cfgPath: cfgPath, logger: logger}
}

// Build constructs the layout.
func (rv *RootView) Build(h Handlers) {
	if rv == nil {
		return
	}
	// Row 0: state label, session stats, camera label
	rv.StateLabel = Label(Txt("State: idle"), Borderwidth(1), Relief("ridge"), Width(18))
	Grid(rv.StateLabel, Row(0), Column(0), Sticky("we"), Padx("0.4m"), Pady("0.3m"))
	rv.Session = NewSessionStats(nil, 0, 1)
	rv.CameraLabel = Label(Txt("Camera: "+rv.cfg.Position), Width(20))
	Grid(rv.CameraLabel, Row(0), Column(3), Sticky("w"), Padx("0.4m"), Pady("0.3m"))

	btnFrame := Frame()
	Grid(btnFrame, Row(0), Column(4), Rowspan(2), Sticky("ne"), Padx("0.3m"), Pady("0.3m"))
	button := func(row int, label string, fn func()) *ButtonWidget {
		b := Button(Txt(label), Command(fn))
		Grid(b, In(btnFrame), Row(row), Column(0), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
		return b
	}
	rv.recordBtn = button(0, "Record", h.OnRecord)
	rv.cancelBtn = button(1, "Cancel", h.OnCancel)
	rv.cancelBtn.Configure(State("disabled"))
	rv.switchBtn = button(2, "Switch Camera", h.OnSwitch)
	button(3, "Zoom +", h.OnZoomIn)
	button(4, "Zoom -", h.OnZoomOut)
	button(5, "Photo", h.OnPhoto)
	button(6, "Exit", h.OnExit)

	// Row 1: last message
	rv.MessageLabel = Label(Txt("Ready"), Anchor("w"), Width(60))
	Grid(rv.MessageLabel, Row(1), Column(0), Columnspan(4), Sticky("we"), Padx("0.4m"), Pady("0.3m"))

	// Config panel rows
	rv.ConfigPanel = NewConfigPanel(rv.cfg, rv.cfgPath, rv.logger)
	rv.ConfigPanel.Build(2)
}

// SetStateLabel updates the state label text.
func (rv *RootView) SetStateLabel(text string) {
	if rv != nil && rv.StateLabel != nil {
		rv.StateLabel.Configure(Txt(text))
	}
}

// SetMessage updates the message line.
func (rv *RootView) SetMessage(text string) {
	if rv != nil && rv.MessageLabel != nil {
		rv.MessageLabel.Configure(Txt(text))
	}
}

// SetCamera shows the active position and zoom factor.
func (rv *RootView) SetCamera(position string, zoom float64) {
	if rv == nil || rv.CameraLabel == nil {
		return
	}
	if position == "" {
		position = rv.cfg.Position
	}
	if zoom <= 0 {
		zoom = 1
	}
	rv.CameraLabel.Configure(Txt(fmt.Sprintf("Camera: %s %.1fx", position, zoom)))
}

// SetRecordingControls relabels the record button and toggles Cancel.
// Switching camera stays enabled while recording.
func (rv *RootView) SetRecordingControls(recording bool) {
	if rv == nil || rv.recordBtn == nil {
		return
	}
	if recording {
		rv.recordBtn.Configure(Txt("Stop"))
		rv.cancelBtn.Configure(State("normal"))
		return
	}
	rv.recordBtn.Configure(Txt("Record"))
	rv.cancelBtn.Configure(State("disabled"))
}

// ConfigEditable toggles config panel editability.
func (rv *RootView) ConfigEditable(enabled bool) {
	if rv != nil && rv.ConfigPanel != nil {
		rv.ConfigPanel.SetEditable(enabled)
	}
}

// SetSession updates both recording and total durations.
func (rv *RootView) SetSession(session, total time.Duration) {
	if rv == nil || rv.Session == nil {
		return
	}
	rv.Session.SetSession(session)
	rv.Session.SetTotal(total)
}
