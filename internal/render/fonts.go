package render

import "errors"

var (
	errEmptyText    = errors.New("text is empty")
	errTooManyLines = errors.New("too many lines")
	errTextTooLong  = errors.New("text too long")
)

// Font is one named style the codec knows how to shape.
type Font struct {
	Name string
	ID   string
}

// fontTable is the enumerated style set offered during text flows. IDs are
// stable across releases; the codec resolves them to actual typefaces.
var fontTable = []Font{
	{Name: "Sans", ID: "sans"},
	{Name: "Sans Bold", ID: "sans-bold"},
	{Name: "Serif", ID: "serif"},
	{Name: "Serif Bold", ID: "serif-bold"},
	{Name: "Mono", ID: "mono"},
	{Name: "Rounded", ID: "rounded"},
	{Name: "Condensed", ID: "condensed"},
	{Name: "Handwriting", ID: "hand"},
	{Name: "Marker", ID: "marker"},
	{Name: "Pixel", ID: "pixel"},
	{Name: "Outline", ID: "outline"},
	{Name: "Shadow", ID: "shadow"},
}

// Fonts returns the selectable font styles in presentation order.
func Fonts() []Font {
	out := make([]Font, len(fontTable))
	copy(out, fontTable)
	return out
}

// FontByIndex returns the font at the given keyboard position.
func FontByIndex(idx int) (Font, bool) {
	if idx < 0 || idx >= len(fontTable) {
		return Font{}, false
	}
	return fontTable[idx], true
}
