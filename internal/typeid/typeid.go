package typeid

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixMap      = "map"
	PrefixSnapshot = "snap"
	PrefixLayer    = "layer"
	PrefixObject   = "obj"
	PrefixSymbol   = "sym"
	PrefixColor    = "color"
	PrefixTemplate = "tmpl"
	PrefixView     = "view"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewMapID() string      { return New(PrefixMap) }
func NewSnapshotID() string { return New(PrefixSnapshot) }
func NewLayerID() string    { return New(PrefixLayer) }
func NewObjectID() string   { return New(PrefixObject) }
func NewSymbolID() string   { return New(PrefixSymbol) }
func NewColorID() string    { return New(PrefixColor) }
func NewTemplateID() string { return New(PrefixTemplate) }
func NewViewID() string     { return New(PrefixView) }

func Validate(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid typeid %q: %w", id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", expectedPrefix, parsed.Prefix(), id)
	}
	return nil
}
