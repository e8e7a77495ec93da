package sheetxml

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

const (
	TypeString  = "String"
	TypeNumber  = "Number"
	TypeBoolean = "Boolean"
)

type Worksheet struct {
	doc *Document
	el  *etree.Element
}

func (w *Worksheet) Name() string {
	return attrValue(w.el, attrName)
}

// Element exposes the underlying node for whole-tree rebuilds.
func (w *Worksheet) Element() *etree.Element {
	return w.el
}

func (w *Worksheet) Table() (*Table, bool) {
	table := firstChild(w.el, tagTable)
	if table == nil {
		return nil, false
	}
	return &Table{doc: w.doc, el: table}, true
}

// Headers returns the header row of the worksheet, or nil when it has no
// table or no rows.
func (w *Worksheet) Headers() []string {
	table, ok := w.Table()
	if !ok {
		return nil
	}
	return table.Headers()
}

// DataRows returns every row after the header row.
func (w *Worksheet) DataRows() []*Row {
	table, ok := w.Table()
	if !ok {
		return nil
	}
	return table.DataRows()
}

type Table struct {
	doc *Document
	el  *etree.Element
}

func (t *Table) Element() *etree.Element {
	return t.el
}

func (t *Table) Rows() []*Row {
	var rows []*Row
	for _, child := range t.el.ChildElements() {
		if isSS(child, tagRow) {
			rows = append(rows, &Row{doc: t.doc, el: child})
		}
	}
	return rows
}

func (t *Table) DataRows() []*Row {
	rows := t.Rows()
	if len(rows) <= 1 {
		return nil
	}
	return rows[1:]
}

// Headers reads the first row positionally. A cell without a data node
// contributes an empty header.
func (t *Table) Headers() []string {
	rows := t.Rows()
	if len(rows) == 0 {
		return nil
	}
	cells := rows[0].Cells()
	headers := make([]string, len(cells))
	for i, cell := range cells {
		headers[i] = cell.Text()
	}
	return headers
}

// ColumnIndex returns the header position of the first alias found,
// compared case-insensitively.
func (t *Table) ColumnIndex(aliases ...string) int {
	return HeaderIndex(t.Headers(), aliases...)
}

// RowCount returns the declared ExpandedRowCount, if present.
func (t *Table) RowCount() (int, bool) {
	return intAttr(t.el, attrRowCount)
}

func (t *Table) SetRowCount(n int) {
	if n < 0 {
		n = 0
	}
	t.doc.setAttr(t.el, attrRowCount, strconv.Itoa(n))
}

// SyncRowCount sets the declared row count to the number of rows present.
func (t *Table) SyncRowCount() int {
	n := len(t.Rows())
	t.SetRowCount(n)
	return n
}

// adjustRowCount shifts an existing declared count by delta. A missing
// declaration is created from the actual row count.
func (t *Table) adjustRowCount(delta int) {
	if n, ok := t.RowCount(); ok {
		t.SetRowCount(n + delta)
		return
	}
	t.SyncRowCount()
}

func (t *Table) ensureColumnCount(n int) {
	current, ok := intAttr(t.el, attrColumnCount)
	if ok && current < n {
		t.doc.setAttr(t.el, attrColumnCount, strconv.Itoa(n))
	}
}

// AppendRow adds row after the last existing row without touching the
// declared row count.
func (t *Table) AppendRow(row *Row) {
	rows := t.Rows()
	if len(rows) == 0 {
		t.el.AddChild(row.el)
	} else {
		t.el.InsertChildAt(rows[len(rows)-1].el.Index()+1, row.el)
	}
	row.doc = t.doc
}

// Contains reports whether row is a direct child of this table.
func (t *Table) Contains(row *Row) bool {
	return row != nil && row.el.Parent() == t.el
}

type Row struct {
	doc *Document
	el  *etree.Element
}

func (r *Row) Element() *etree.Element {
	return r.el
}

// Same reports whether both wrappers point at the same node.
func (r *Row) Same(other *Row) bool {
	return other != nil && r.el == other.el
}

func (r *Row) Cells() []*Cell {
	var cells []*Cell
	for _, child := range r.el.ChildElements() {
		if isSS(child, tagCell) {
			cells = append(cells, &Cell{doc: r.doc, el: child})
		}
	}
	return cells
}

// Positions returns the zero-based logical column of each cell.
func (r *Row) Positions() []int {
	return columnPositions(r.Cells())
}

// Values maps header names to cell text, honoring explicit cell indexes.
// Columns with no cell and empty header names are absent from the map.
func (r *Row) Values(headers []string) map[string]string {
	cells := r.Cells()
	positions := columnPositions(cells)
	values := make(map[string]string, len(cells))
	for i, cell := range cells {
		pos := positions[i]
		if pos < 0 || pos >= len(headers) || headers[pos] == "" {
			continue
		}
		values[headers[pos]] = cell.Text()
	}
	return values
}

// CellAt returns the cell occupying logical column col.
func (r *Row) CellAt(col int) (*Cell, bool) {
	cells := r.Cells()
	for i, pos := range columnPositions(cells) {
		if pos == col {
			return cells[i], true
		}
	}
	return nil, false
}

func (r *Row) ValueAt(col int) (string, bool) {
	cell, ok := r.CellAt(col)
	if !ok {
		return "", false
	}
	return cell.Text(), true
}

func (r *Row) StyleID() string {
	return attrValue(r.el, attrStyleID)
}

func (r *Row) SetStyle(id string) {
	r.doc.setAttr(r.el, attrStyleID, id)
}

// ClearStyles strips StyleID from the row and every cell in it.
func (r *Row) ClearStyles() {
	removeAttr(r.el, attrStyleID)
	for _, cell := range r.Cells() {
		removeAttr(cell.el, attrStyleID)
	}
}

// Copy returns a detached deep copy of the row.
func (r *Row) Copy() *Row {
	return &Row{doc: r.doc, el: r.el.Copy()}
}

type Cell struct {
	doc *Document
	el  *etree.Element
}

func (c *Cell) data() *etree.Element {
	return firstChild(c.el, tagData)
}

// Text returns the data text, or "" when the cell has no data node.
func (c *Cell) Text() string {
	data := c.data()
	if data == nil {
		return ""
	}
	return data.Text()
}

func (c *Cell) Type() string {
	data := c.data()
	if data == nil {
		return ""
	}
	return attrValue(data, attrType)
}

// Index returns the explicit one-based column index, if any.
func (c *Cell) Index() (int, bool) {
	return explicitIndex(c.el)
}

func (c *Cell) StyleID() string {
	return attrValue(c.el, attrStyleID)
}

func (c *Cell) SetStyle(id string) {
	c.doc.setAttr(c.el, attrStyleID, id)
}

// SetValue writes value, storing TRUE/FALSE as Boolean 1/0.
func (c *Cell) SetValue(value string) {
	text, typ := NormalizeValue(value)
	c.SetData(text, typ)
}

// SetData writes text with an explicit data type, creating the data node
// when the cell has none.
func (c *Cell) SetData(text, typ string) {
	data := c.data()
	if data == nil {
		data = c.doc.newElement(tagData)
		c.el.AddChild(data)
	}
	c.doc.setAttr(data, attrType, typ)
	data.SetText(text)
}

// NormalizeValue maps boolean literals to the Boolean data type.
func NormalizeValue(value string) (text, typ string) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "TRUE":
		return "1", TypeBoolean
	case "FALSE":
		return "0", TypeBoolean
	}
	return value, TypeString
}

// HeaderIndex finds the first alias among headers, ignoring case and
// surrounding space. It returns -1 when none is present.
func HeaderIndex(headers []string, aliases ...string) int {
	for _, alias := range aliases {
		want := strings.ToLower(strings.TrimSpace(alias))
		for i, header := range headers {
			if strings.ToLower(strings.TrimSpace(header)) == want {
				return i
			}
		}
	}
	return -1
}

// columnPositions replays the sparse column counter: an explicit index
// resets the counter to index-1, every cell then advances it by one.
func columnPositions(cells []*Cell) []int {
	positions := make([]int, len(cells))
	current := 0
	for i, cell := range cells {
		if idx, ok := explicitIndex(cell.el); ok {
			current = idx - 1
		}
		positions[i] = current
		current++
	}
	return positions
}

func explicitIndex(el *etree.Element) (int, bool) {
	idx, ok := intAttr(el, attrIndex)
	if !ok || idx < 1 {
		return 0, false
	}
	return idx, true
}

func intAttr(el *etree.Element, local string) (int, bool) {
	if !hasAttr(el, local) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(attrValue(el, local)))
	if err != nil {
		return 0, false
	}
	return n, true
}
