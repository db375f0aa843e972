package document

import "sync"

// BuiltinSymbols are shared by every map and never belong to one: the
// covering symbols used to highlight selections and the undefined symbols
// standing in for symbols a file referenced but did not define.
type BuiltinSymbols struct {
	CoveringWhite  *Color
	CoveringRed    *Color
	UndefinedColor *Color

	CoveringWhiteLine    *LineSymbol
	CoveringRedLine      *LineSymbol
	CoveringCombinedLine *CombinedSymbol
	UndefinedLine        *LineSymbol
	UndefinedPoint       *PointSymbol
}

var (
	builtinsOnce sync.Once
	builtins     *BuiltinSymbols
)

// Builtins returns the process wide builtin symbols. They must be treated
// as read-only.
func Builtins() *BuiltinSymbols {
	builtinsOnce.Do(func() {
		builtins = newBuiltinSymbols()
	})
	return builtins
}

func newBuiltinSymbols() *BuiltinSymbols {
	b := &BuiltinSymbols{
		CoveringWhite:  NewRGBColor("covering white", 1, 1, 1),
		CoveringRed:    NewRGBColor("covering red", 1, 0, 0),
		UndefinedColor: NewRGBColor("undefined", 0.5, 0.5, 0.5),
	}
	b.CoveringWhite.Priority = PriorityCoveringWhite
	b.CoveringRed.Priority = PriorityCoveringRed
	b.UndefinedColor.Priority = PriorityUndefined

	b.CoveringWhiteLine = NewLineSymbol("covering white line")
	b.CoveringWhiteLine.Color = b.CoveringWhite
	b.CoveringWhiteLine.LineWidth = 3000

	b.CoveringRedLine = NewLineSymbol("covering red line")
	b.CoveringRedLine.Color = b.CoveringRed
	b.CoveringRedLine.LineWidth = 100

	b.CoveringCombinedLine = NewCombinedSymbol("covering line", b.CoveringWhiteLine, b.CoveringRedLine)

	b.UndefinedLine = NewLineSymbol("undefined line")
	b.UndefinedLine.Color = b.UndefinedColor
	b.UndefinedLine.LineWidth = 1000
	b.UndefinedLine.Helper = true

	b.UndefinedPoint = NewPointSymbol("undefined point")
	b.UndefinedPoint.InnerRadius = 100
	b.UndefinedPoint.InnerColor = b.UndefinedColor
	b.UndefinedPoint.Helper = true
	return b
}
