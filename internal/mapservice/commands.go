package mapservice

import (
	"fmt"

	"github.com/orimap/orimap/internal/engine"
)

// Command is one editor command sent by the client. Which fields are read
// depends on Op. Coordinates are viewport pixels.
type Command struct {
	Op string `json:"op"`

	X  float64 `json:"x,omitempty"`
	Y  float64 `json:"y,omitempty"`
	X2 float64 `json:"x2,omitempty"`
	Y2 float64 `json:"y2,omitempty"`
	DX float64 `json:"dx,omitempty"`
	DY float64 `json:"dy,omitempty"`

	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`

	Steps    float64 `json:"steps,omitempty"`
	Zoom     float64 `json:"zoom,omitempty"`
	Rotation float64 `json:"rotation,omitempty"`

	Add     bool     `json:"add,omitempty"`
	Index   int      `json:"index,omitempty"`
	IDs     []string `json:"ids,omitempty"`
	Visible bool     `json:"visible,omitempty"`
	Opacity float32  `json:"opacity,omitempty"`
	Show    bool     `json:"show,omitempty"`
}

// CommandResult reports what a command did. Count is the number of
// objects affected where that applies.
type CommandResult struct {
	OK          bool         `json:"ok"`
	Count       int          `json:"count"`
	NeedsRender bool         `json:"needsRender"`
	State       engine.State `json:"state"`
}

// Apply executes cmd on e. Index arguments are validated here because the
// engine treats a bad index as a programming error.
func Apply(e *engine.Engine, cmd Command) (CommandResult, error) {
	var res CommandResult
	ok := func(b bool) { res.OK = b }
	count := func(n int) {
		res.Count = n
		res.OK = n > 0
	}
	m := e.Map()

	switch cmd.Op {
	case "resize":
		if cmd.Width <= 0 || cmd.Height <= 0 {
			return res, fmt.Errorf("resize to %dx%d: %w", cmd.Width, cmd.Height, ErrBadIndex)
		}
		e.Resize(cmd.Width, cmd.Height)
		ok(true)
	case "zoom":
		e.SetZoom(cmd.Zoom)
		ok(true)
	case "zoomSteps":
		ok(e.ZoomSteps(cmd.Steps, cmd.X, cmd.Y))
	case "rotate":
		e.SetRotation(cmd.Rotation)
		ok(true)
	case "drag":
		e.DragTo(int(cmd.DX), int(cmd.DY))
		ok(true)
	case "pan":
		e.Pan(int(cmd.DX), int(cmd.DY))
		ok(true)
	case "fit":
		e.FitToMap()
		ok(true)
	case "selectAt":
		ok(e.SelectAt(cmd.X, cmd.Y, cmd.Add))
	case "selectBox":
		count(e.SelectBox(cmd.X, cmd.Y, cmd.X2, cmd.Y2, cmd.Add))
	case "setSelection":
		e.SetSelection(cmd.IDs)
		count(m.NumSelectedObjects())
	case "clearSelection":
		e.ClearSelection()
		ok(true)
	case "delete":
		count(e.DeleteSelection())
	case "duplicate":
		count(e.DuplicateSelection())
	case "switchDashes":
		count(e.SwitchDashes())
	case "connectPaths":
		ok(e.ConnectPaths())
	case "switchSymbol":
		if err := checkIndex("symbol", cmd.Index, m.NumSymbols()); err != nil {
			return res, err
		}
		ok(e.SwitchSymbol(cmd.Index))
	case "fillOrCreateBorder":
		if err := checkIndex("symbol", cmd.Index, m.NumSymbols()); err != nil {
			return res, err
		}
		ok(e.FillOrCreateBorder(cmd.Index))
	case "move":
		ok(e.MoveSelection(cmd.DX, cmd.DY))
	case "setCurrentLayer":
		if err := checkIndex("layer", cmd.Index, m.NumLayers()); err != nil {
			return res, err
		}
		e.SetCurrentLayer(cmd.Index)
		ok(true)
	case "setTemplateVisibility":
		if err := checkIndex("template", cmd.Index, m.NumTemplates()); err != nil {
			return res, err
		}
		e.SetTemplateVisibility(cmd.Index, cmd.Visible, cmd.Opacity)
		ok(true)
	case "showHelperSymbols":
		e.SetShowHelperSymbols(cmd.Show)
		ok(true)
	case "undo":
		ok(e.Undo())
	case "redo":
		ok(e.Redo())
	default:
		return res, fmt.Errorf("%w: %q", ErrUnknownOp, cmd.Op)
	}

	res.NeedsRender = e.NeedsRender()
	res.State = e.State()
	return res, nil
}

func checkIndex(what string, i, n int) error {
	if i < 0 || i >= n {
		return fmt.Errorf("%s %d not in [0, %d): %w", what, i, n, ErrBadIndex)
	}
	return nil
}
