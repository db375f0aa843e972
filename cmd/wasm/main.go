//go:build js && wasm

package main

import (
	"bytes"
	"syscall/js"

	"github.com/orimap/orimap/internal/engine"
)

var eng *engine.Engine

func main() {
	eng = engine.NewEngine()

	// Create the engine API object
	orimapEngine := js.Global().Get("Object").New()

	// --- Commands (frontend → backend) ---
	orimapEngine.Set("loadDocument", js.FuncOf(loadDocument))
	orimapEngine.Set("saveDocument", js.FuncOf(saveDocument))
	orimapEngine.Set("loadSampleDocument", js.FuncOf(loadSampleDocument))
	orimapEngine.Set("resize", js.FuncOf(resize))
	orimapEngine.Set("zoomSteps", js.FuncOf(zoomSteps))
	orimapEngine.Set("setZoom", js.FuncOf(setZoom))
	orimapEngine.Set("setRotation", js.FuncOf(setRotation))
	orimapEngine.Set("dragTo", js.FuncOf(dragTo))
	orimapEngine.Set("pan", js.FuncOf(pan))
	orimapEngine.Set("fitToMap", js.FuncOf(fitToMap))
	orimapEngine.Set("selectAt", js.FuncOf(selectAt))
	orimapEngine.Set("selectBox", js.FuncOf(selectBox))
	orimapEngine.Set("setSelection", js.FuncOf(setSelection))
	orimapEngine.Set("clearSelection", js.FuncOf(clearSelection))
	orimapEngine.Set("deleteSelection", js.FuncOf(deleteSelection))
	orimapEngine.Set("duplicateSelection", js.FuncOf(duplicateSelection))
	orimapEngine.Set("switchDashes", js.FuncOf(switchDashes))
	orimapEngine.Set("connectPaths", js.FuncOf(connectPaths))
	orimapEngine.Set("switchSymbol", js.FuncOf(switchSymbol))
	orimapEngine.Set("fillOrCreateBorder", js.FuncOf(fillOrCreateBorder))
	orimapEngine.Set("moveSelection", js.FuncOf(moveSelection))
	orimapEngine.Set("setCurrentLayer", js.FuncOf(setCurrentLayer))
	orimapEngine.Set("setTemplateVisibility", js.FuncOf(setTemplateVisibility))
	orimapEngine.Set("addImageTemplate", js.FuncOf(addImageTemplate))
	orimapEngine.Set("setShowHelperSymbols", js.FuncOf(setShowHelperSymbols))
	orimapEngine.Set("undo", js.FuncOf(undo))
	orimapEngine.Set("redo", js.FuncOf(redo))

	// --- Queries (frontend ← backend) ---
	orimapEngine.Set("render", js.FuncOf(render))
	orimapEngine.Set("needsRender", js.FuncOf(needsRender))
	orimapEngine.Set("hitTest", js.FuncOf(hitTest))
	orimapEngine.Set("getSelectionBounds", js.FuncOf(getSelectionBounds))
	orimapEngine.Set("getSelection", js.FuncOf(getSelection))
	orimapEngine.Set("getState", js.FuncOf(getState))
	orimapEngine.Set("getSymbols", js.FuncOf(getSymbols))
	orimapEngine.Set("getDocument", js.FuncOf(getDocument))

	// Register on global scope
	js.Global().Set("orimapEngine", orimapEngine)

	// Signal that WASM is ready
	js.Global().Set("orimapWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func errorResult(err error) interface{} {
	return js.ValueOf(map[string]interface{}{"error": err.Error()})
}

// intArg returns args[i] as an int, or -1 if it is missing. Index based
// engine calls panic on bad indexes, so callers check ranges first.
func intArg(args []js.Value, i int) int {
	if len(args) <= i || args[i].Type() != js.TypeNumber {
		return -1
	}
	return args[i].Int()
}

func floatArgs(args []js.Value, n int) ([]float64, bool) {
	if len(args) < n {
		return nil, false
	}
	out := make([]float64, n)
	for i := range n {
		out[i] = args[i].Float()
	}
	return out, true
}

// --- Command Handlers ---

// loadDocument takes the file content as a Uint8Array and its file name.
func loadDocument(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing document data"})
	}
	data := make([]byte, args[0].Get("length").Int())
	js.CopyBytesToGo(data, args[0])
	name := ""
	if len(args) > 1 {
		name = args[1].String()
	}

	warnings, err := eng.LoadDocument(bytes.NewReader(data), name)
	if err != nil {
		return errorResult(err)
	}
	eng.FitToMap()

	list := make([]interface{}, len(warnings))
	for i, w := range warnings {
		list[i] = w
	}
	return js.ValueOf(map[string]interface{}{"ok": true, "warnings": list})
}

// saveDocument returns the map as a Uint8Array in the given format.
func saveDocument(this js.Value, args []js.Value) interface{} {
	formatID := ""
	if len(args) > 0 && args[0].Type() == js.TypeString {
		formatID = args[0].String()
	}
	var buf bytes.Buffer
	if err := eng.SaveDocument(&buf, formatID); err != nil {
		return errorResult(err)
	}
	out := js.Global().Get("Uint8Array").New(buf.Len())
	js.CopyBytesToJS(out, buf.Bytes())
	return out
}

func loadSampleDocument(this js.Value, args []js.Value) interface{} {
	eng.LoadSampleDocument()
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func resize(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	eng.Resize(args[0].Int(), args[1].Int())
	return nil
}

func zoomSteps(this js.Value, args []js.Value) interface{} {
	a, ok := floatArgs(args, 3)
	if !ok {
		return js.ValueOf(false)
	}
	return js.ValueOf(eng.ZoomSteps(a[0], a[1], a[2]))
}

func setZoom(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	eng.SetZoom(args[0].Float())
	return nil
}

func setRotation(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	eng.SetRotation(args[0].Float())
	return nil
}

func dragTo(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	eng.DragTo(args[0].Int(), args[1].Int())
	return nil
}

func pan(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	eng.Pan(args[0].Int(), args[1].Int())
	return nil
}

func fitToMap(this js.Value, args []js.Value) interface{} {
	eng.FitToMap()
	return nil
}

func selectAt(this js.Value, args []js.Value) interface{} {
	a, ok := floatArgs(args, 2)
	if !ok {
		return js.ValueOf(false)
	}
	add := len(args) > 2 && args[2].Truthy()
	return js.ValueOf(eng.SelectAt(a[0], a[1], add))
}

func selectBox(this js.Value, args []js.Value) interface{} {
	a, ok := floatArgs(args, 4)
	if !ok {
		return js.ValueOf(0)
	}
	add := len(args) > 4 && args[4].Truthy()
	return js.ValueOf(eng.SelectBox(a[0], a[1], a[2], a[3], add))
}

func setSelection(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		eng.SetSelection(nil)
		return nil
	}

	arr := args[0]
	if arr.Type() != js.TypeObject {
		eng.SetSelection(nil)
		return nil
	}

	length := arr.Length()
	ids := make([]string, length)
	for i := 0; i < length; i++ {
		ids[i] = arr.Index(i).String()
	}
	eng.SetSelection(ids)
	return nil
}

func clearSelection(this js.Value, args []js.Value) interface{} {
	eng.ClearSelection()
	return nil
}

func deleteSelection(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.DeleteSelection())
}

func duplicateSelection(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.DuplicateSelection())
}

func switchDashes(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.SwitchDashes())
}

func connectPaths(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.ConnectPaths())
}

func switchSymbol(this js.Value, args []js.Value) interface{} {
	i := intArg(args, 0)
	if i < 0 || i >= eng.Map().NumSymbols() {
		return js.ValueOf(false)
	}
	return js.ValueOf(eng.SwitchSymbol(i))
}

func fillOrCreateBorder(this js.Value, args []js.Value) interface{} {
	i := intArg(args, 0)
	if i < 0 || i >= eng.Map().NumSymbols() {
		return js.ValueOf(false)
	}
	return js.ValueOf(eng.FillOrCreateBorder(i))
}

func moveSelection(this js.Value, args []js.Value) interface{} {
	a, ok := floatArgs(args, 2)
	if !ok {
		return js.ValueOf(false)
	}
	return js.ValueOf(eng.MoveSelection(a[0], a[1]))
}

func setCurrentLayer(this js.Value, args []js.Value) interface{} {
	i := intArg(args, 0)
	if i < 0 || i >= eng.Map().NumLayers() {
		return js.ValueOf(false)
	}
	eng.SetCurrentLayer(i)
	return js.ValueOf(true)
}

func setTemplateVisibility(this js.Value, args []js.Value) interface{} {
	i := intArg(args, 0)
	if i < 0 || i >= eng.Map().NumTemplates() || len(args) < 3 {
		return js.ValueOf(false)
	}
	eng.SetTemplateVisibility(i, args[1].Truthy(), float32(args[2].Float()))
	return js.ValueOf(true)
}

// addImageTemplate(url, width, height, front) places an already loaded
// image as a template and returns its index.
func addImageTemplate(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return js.ValueOf(-1)
	}
	front := len(args) > 3 && args[3].Truthy()
	return js.ValueOf(eng.AddImageTemplate(args[0].String(), args[1].Int(), args[2].Int(), front))
}

func setShowHelperSymbols(this js.Value, args []js.Value) interface{} {
	eng.SetShowHelperSymbols(len(args) > 0 && args[0].Truthy())
	return nil
}

func undo(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.Undo())
}

func redo(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.Redo())
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.Render())
}

func needsRender(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.NeedsRender())
}

func hitTest(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("")
	}
	x := args[0].Float()
	y := args[1].Float()
	return js.ValueOf(eng.HitTest(x, y))
}

func getSelectionBounds(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetSelectionBounds())
}

func getSelection(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetSelection())
}

func getState(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetState())
}

func getSymbols(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetSymbols())
}

func getDocument(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetDocument())
}
