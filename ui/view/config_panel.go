package view

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/soocke/camrec/config"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// ConfigPanel encapsulates the configuration form widgets and apply logic.
// It owns its widgets and writes back into *config.Config on ApplyChanges.
type ConfigPanel interface {
	Build(startRow int) (endRow int) // constructs widgets starting at startRow, returns next free row
	SetEditable(enabled bool)
	ApplyChanges() // parses widget text into underlying config and persists
}

type configPanel struct {
	cfg      *config.Config
	cfgPath  string
	logger   *slog.Logger
	applyBtn *ButtonWidget
	widgets  map[string]*TextWidget // keyed by internal field id
}

// NewConfigPanel creates the view bound to cfg.
func NewConfigPanel(cfg *config.Config, cfgPath string, logger *slog.Logger) ConfigPanel {
	return &configPanel{cfg: cfg, cfgPath: cfgPath, logger: logger, widgets: make(map[string]*TextWidget)}
}

func (v *configPanel) Build(startRow int) (row int) {
	c := v.cfg
	row = startRow
	makeRow := func(id, label, value string) {
		lbl := Label(Txt(label), Anchor("w"))
		Grid(lbl, Row(row), Column(0), Sticky("w"), Padx("0.4m"), Pady("0.15m"))
		w := Text(Height(1), Width(28))
		Grid(w, Row(row), Column(1), Columnspan(2), Sticky("we"), Padx("0.4m"), Pady("0.15m"))
		w.Delete("1.0", END)
		w.Insert("1.0", value)
		v.widgets[id] = w
		row++
	}
	makeRow("outputDir", "Output Directory", c.OutputDir)
	makeRow("videoType", "Video Type (mov/mp4/m4v/3gp/3g2)", c.VideoFileType)
	makeRow("imageType", "Image Type (jpg/tiff)", c.ImageFileType)
	makeRow("frameRate", "Frame Rate", fmt.Sprintf("%d", c.FrameRate))
	makeRow("pressureFrameRate", "Throttled Frame Rate", fmt.Sprintf("%d", c.PressureFrameRate))
	makeRow("width", "Width", fmt.Sprintf("%d", c.Width))
	makeRow("height", "Height", fmt.Sprintf("%d", c.Height))
	makeRow("audio", "Audio (true/false)", fmt.Sprintf("%t", c.AudioEnabled))
	makeRow("preset", "Encoder Preset", c.Preset)
	makeRow("crf", "CRF", fmt.Sprintf("%d", c.CRF))
	makeRow("stillHeight", "Photo Height Px", fmt.Sprintf("%d", c.StillHeight))
	v.applyBtn = Button(Txt("Apply Changes (restart to use)"), Command(func() { v.ApplyChanges() }))
	Grid(v.applyBtn, Row(row), Column(0), Columnspan(3), Sticky("we"), Padx("0.4m"), Pady("0.3m"))
	row++
	return row
}

func (v *configPanel) SetEditable(enabled bool) {
	state := "disabled"
	if enabled {
		state = "normal"
	}
	for _, w := range v.widgets {
		if w != nil {
			w.Configure(State(state))
		}
	}
	if v.applyBtn != nil {
		v.applyBtn.Configure(State(state))
	}
}

func (v *configPanel) text(w *TextWidget) string {
	if w == nil {
		return ""
	}
	parts := w.Get("1.0", END)
	return strings.Join(parts, "")
}

func (v *configPanel) ApplyChanges() {
	if v.cfg == nil {
		return
	}
	cfg := *v.cfg // copy
	assignInt := func(id string, dst *int) {
		w := v.widgets[id]
		if w == nil {
			return
		}
		if i, ok := parseIntField(strings.TrimSpace(v.text(w))); ok {
			*dst = i
		}
	}
	assignBool := func(id string, dst *bool) {
		w := v.widgets[id]
		if w == nil {
			return
		}
		if b, ok := parseBoolLoose(strings.TrimSpace(v.text(w))); ok {
			*dst = b
		}
	}
	assignString := func(id string, dst *string) {
		w := v.widgets[id]
		if w == nil {
			return
		}
		if val := strings.TrimSpace(v.text(w)); val != "" {
			*dst = val
		}
	}
	assignString("outputDir", &cfg.OutputDir)
	assignString("videoType", &cfg.VideoFileType)
	assignString("imageType", &cfg.ImageFileType)
	assignInt("frameRate", &cfg.FrameRate)
	assignInt("pressureFrameRate", &cfg.PressureFrameRate)
	assignInt("width", &cfg.Width)
	assignInt("height", &cfg.Height)
	assignBool("audio", &cfg.AudioEnabled)
	assignString("preset", &cfg.Preset)
	assignInt("crf", &cfg.CRF)
	assignInt("stillHeight", &cfg.StillHeight)
	if verr := cfg.Validate(); verr != nil {
		if v.logger != nil {
			v.logger.Warn("config rejected", "error", verr)
		}
		return
	}
	*v.cfg = cfg
	if err := v.cfg.Save(v.cfgPath); err != nil {
		if v.logger != nil {
			v.logger.Error("config save failed", "error", err)
		}
	} else {
		if v.logger != nil {
			v.logger.Info("config saved", "path", v.cfgPath)
		}
	}
}

// parsing helpers (unexported)
func parseIntField(s string) (int, bool) {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return i, true
}
func parseBoolLoose(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y", "on", "t":
		return true, true
	case "false", "0", "no", "n", "off", "f":
		return false, true
	default:
		return false, false
	}
}
