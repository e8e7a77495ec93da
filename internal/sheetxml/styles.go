package sheetxml

import "strings"

// Highlight style ids written into edited workbooks.
const (
	StyleAdded    = "AIAdded"
	StyleModified = "AIModified"
	StyleMerged   = "AIMerged"
)

// Palette holds the fill color for each highlight style.
type Palette struct {
	Added    string `json:"added"`
	Modified string `json:"modified"`
	Merged   string `json:"merged"`
}

func DefaultPalette() Palette {
	return Palette{
		Added:    "#FFC7CE",
		Modified: "#FFD966",
		Merged:   "#C6EFCE",
	}
}

func (p Palette) withDefaults() Palette {
	defaults := DefaultPalette()
	if strings.TrimSpace(p.Added) == "" {
		p.Added = defaults.Added
	}
	if strings.TrimSpace(p.Modified) == "" {
		p.Modified = defaults.Modified
	}
	if strings.TrimSpace(p.Merged) == "" {
		p.Merged = defaults.Merged
	}
	return p
}

// Color returns the fill color for a highlight style id.
func (p Palette) Color(styleID string) (string, bool) {
	switch styleID {
	case StyleAdded:
		return p.Added, true
	case StyleModified:
		return p.Modified, true
	case StyleMerged:
		return p.Merged, true
	}
	return "", false
}

type highlight struct {
	id    string
	color string
}

func (p Palette) highlights() []highlight {
	return []highlight{
		{id: StyleAdded, color: p.Added},
		{id: StyleModified, color: p.Modified},
		{id: StyleMerged, color: p.Merged},
	}
}

// EnsureHighlightStyles adds the highlight styles that are missing. The
// Styles container is created before the first worksheet when absent.
// Calling it repeatedly never duplicates a style.
func (d *Document) EnsureHighlightStyles() {
	root := d.tree.Root()
	styles := firstChild(root, tagStyles)
	if styles == nil {
		styles = d.newElement(tagStyles)
		inserted := false
		for _, child := range root.ChildElements() {
			if isSS(child, tagWorksheet) {
				root.InsertChildAt(child.Index(), styles)
				inserted = true
				break
			}
		}
		if !inserted {
			root.AddChild(styles)
		}
	}
	existing := make(map[string]bool)
	for _, child := range styles.ChildElements() {
		if isSS(child, tagStyle) {
			existing[attrValue(child, attrID)] = true
		}
	}
	for _, h := range d.palette.highlights() {
		if existing[h.id] {
			continue
		}
		style := d.newElement(tagStyle)
		d.setAttr(style, attrID, h.id)
		interior := d.newElement(tagInterior)
		d.setAttr(interior, attrColor, h.color)
		d.setAttr(interior, attrPattern, "Solid")
		style.AddChild(interior)
		styles.AddChild(style)
	}
}

// HasStyle reports whether a style with the given id is declared.
func (d *Document) HasStyle(id string) bool {
	styles := firstChild(d.tree.Root(), tagStyles)
	if styles == nil {
		return false
	}
	for _, child := range styles.ChildElements() {
		if isSS(child, tagStyle) && attrValue(child, attrID) == id {
			return true
		}
	}
	return false
}
