package sheetxml

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/beevik/etree"

	"formedit/engine/internal/logging"
)

const (
	NamespaceSS   = "urn:schemas-microsoft-com:office:spreadsheet"
	NamespaceO    = "urn:schemas-microsoft-com:office:office"
	NamespaceX    = "urn:schemas-microsoft-com:office:excel"
	NamespaceHTML = "http://www.w3.org/TR/REC-html40"
)

// Conventional worksheet roles. Nothing in the format enforces them.
const (
	WorksheetSurvey         = "survey"
	WorksheetSelectOne      = "select_one"
	WorksheetSelectMultiple = "select_multiple"
	WorksheetSettings       = "settings"
)

const (
	tagWorkbook  = "Workbook"
	tagWorksheet = "Worksheet"
	tagTable     = "Table"
	tagRow       = "Row"
	tagCell      = "Cell"
	tagData      = "Data"
	tagStyles    = "Styles"
	tagStyle     = "Style"
	tagInterior  = "Interior"

	attrName          = "Name"
	attrIndex         = "Index"
	attrType          = "Type"
	attrStyleID       = "StyleID"
	attrID            = "ID"
	attrColor         = "Color"
	attrPattern       = "Pattern"
	attrRowCount      = "ExpandedRowCount"
	attrColumnCount   = "ExpandedColumnCount"
	defaultAttrPrefix = "ss"
)

var ErrNotWorkbook = errors.New("not a spreadsheet workbook")

// Document is one parsed workbook. It is owned by a single editing session
// and is not safe for concurrent use.
type Document struct {
	path     string
	tree     *etree.Document
	space    string
	ssPrefix string
	palette  Palette
	logger   *slog.Logger
	now      func() time.Time
	modified bool
}

type Option func(*Document)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Document) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Document) {
		if now != nil {
			d.now = now
		}
	}
}

func WithPalette(palette Palette) Option {
	return func(d *Document) {
		d.palette = palette.withDefaults()
	}
}

// Open parses the workbook stored at path.
func Open(path string, opts ...Option) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	doc.path = path
	return doc, nil
}

// Parse builds a Document from raw XML. The result has no backing path, so
// saving it requires an explicit output path.
func Parse(data []byte, opts ...Option) (*Document, error) {
	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(data); err != nil {
		return nil, err
	}
	root := tree.Root()
	if root == nil || root.Tag != tagWorkbook {
		return nil, ErrNotWorkbook
	}
	d := &Document{
		tree:    tree,
		palette: DefaultPalette(),
		logger:  logging.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.bindNamespaces()
	return d, nil
}

func (d *Document) Path() string {
	return d.path
}

// Modified reports whether any structural change was made since load.
func (d *Document) Modified() bool {
	return d.modified
}

func (d *Document) MarkModified() {
	d.modified = true
}

func (d *Document) Palette() Palette {
	return d.palette
}

func (d *Document) Worksheets() []*Worksheet {
	root := d.tree.Root()
	var out []*Worksheet
	for _, child := range root.ChildElements() {
		if isSS(child, tagWorksheet) {
			out = append(out, &Worksheet{doc: d, el: child})
		}
	}
	return out
}

// FindWorksheet returns the first worksheet whose Name matches exactly.
func (d *Document) FindWorksheet(name string) (*Worksheet, bool) {
	for _, ws := range d.Worksheets() {
		if ws.Name() == name {
			return ws, true
		}
	}
	return nil, false
}

// CopyRoot returns a deep copy of the workbook element.
func (d *Document) CopyRoot() *etree.Element {
	return d.tree.Root().Copy()
}

// ReplaceRoot swaps the whole workbook tree. The document is marked modified.
func (d *Document) ReplaceRoot(root *etree.Element) {
	d.tree.SetRoot(root)
	d.bindNamespaces()
	d.modified = true
}

// Bytes serializes the current tree with an XML declaration.
func (d *Document) Bytes() ([]byte, error) {
	d.ensureDeclaration()
	return d.tree.WriteToBytes()
}

func (d *Document) bindNamespaces() {
	root := d.tree.Root()
	d.space = root.Space
	d.ssPrefix = ""
	for _, attr := range root.Attr {
		if attr.Space == "xmlns" && attr.Value == NamespaceSS {
			d.ssPrefix = attr.Key
			break
		}
	}
	if d.ssPrefix == "" {
		root.CreateAttr("xmlns:"+defaultAttrPrefix, NamespaceSS)
		d.ssPrefix = defaultAttrPrefix
	}
}

func (d *Document) ensureDeclaration() {
	for _, tok := range d.tree.Child {
		if pi, ok := tok.(*etree.ProcInst); ok && pi.Target == "xml" {
			return
		}
	}
	pi := d.tree.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	d.tree.RemoveChild(pi)
	d.tree.InsertChildAt(0, pi)
}

func (d *Document) newElement(tag string) *etree.Element {
	el := etree.NewElement(tag)
	el.Space = d.space
	return el
}

func (d *Document) setAttr(el *etree.Element, local, value string) {
	for i := range el.Attr {
		if isSSAttr(&el.Attr[i], local) {
			el.Attr[i].Value = value
			return
		}
	}
	el.CreateAttr(d.ssPrefix+":"+local, value)
}

func isSS(el *etree.Element, tag string) bool {
	if el == nil || el.Tag != tag {
		return false
	}
	ns := el.NamespaceURI()
	return ns == NamespaceSS || ns == ""
}

func isSSAttr(attr *etree.Attr, local string) bool {
	if attr.Key != local {
		return false
	}
	if attr.Space == "" || attr.Space == defaultAttrPrefix {
		return true
	}
	return attr.NamespaceURI() == NamespaceSS
}

func attrValue(el *etree.Element, local string) string {
	for i := range el.Attr {
		if isSSAttr(&el.Attr[i], local) {
			return el.Attr[i].Value
		}
	}
	return ""
}

func hasAttr(el *etree.Element, local string) bool {
	for i := range el.Attr {
		if isSSAttr(&el.Attr[i], local) {
			return true
		}
	}
	return false
}

func removeAttr(el *etree.Element, local string) {
	kept := el.Attr[:0]
	for i := range el.Attr {
		if isSSAttr(&el.Attr[i], local) {
			continue
		}
		kept = append(kept, el.Attr[i])
	}
	el.Attr = kept
}

func firstChild(el *etree.Element, tag string) *etree.Element {
	for _, child := range el.ChildElements() {
		if isSS(child, tag) {
			return child
		}
	}
	return nil
}
