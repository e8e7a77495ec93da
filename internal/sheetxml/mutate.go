package sheetxml

import "strconv"

// Position selects where AddRow places the new row.
type Position int

const (
	AtEnd Position = iota
	AfterHeader
)

// CellData is one dense cell used when building a row.
type CellData struct {
	Value string
	Type  string
}

// NewRow builds a detached row of dense String cells.
func (d *Document) NewRow(values []string) *Row {
	cells := make([]CellData, len(values))
	for i, v := range values {
		cells[i] = CellData{Value: v, Type: TypeString}
	}
	return d.NewRowFromCells(cells)
}

// NewRowFromCells builds a detached row with one cell per entry. An empty
// type is stored as String.
func (d *Document) NewRowFromCells(cells []CellData) *Row {
	row := &Row{doc: d, el: d.newElement(tagRow)}
	for _, data := range cells {
		cell := &Cell{doc: d, el: d.newElement(tagCell)}
		typ := data.Type
		if typ == "" {
			typ = TypeString
		}
		cell.SetData(data.Value, typ)
		row.el.AddChild(cell.el)
	}
	return row
}

// ImportRow deep-copies a row from any document into a detached row owned
// by d.
func (d *Document) ImportRow(src *Row) *Row {
	return &Row{doc: d, el: src.el.Copy()}
}

// AddRow inserts a row of String cells tagged as added. It fails when the
// worksheet has no table.
func (d *Document) AddRow(ws *Worksheet, values []string, pos Position) (*Row, bool) {
	table, ok := ws.Table()
	if !ok {
		return nil, false
	}
	d.EnsureHighlightStyles()
	row := d.NewRow(values)
	row.SetStyle(StyleAdded)
	rows := table.Rows()
	switch {
	case len(rows) == 0:
		table.el.AddChild(row.el)
	case pos == AfterHeader:
		table.el.InsertChildAt(rows[0].el.Index()+1, row.el)
	default:
		table.el.InsertChildAt(rows[len(rows)-1].el.Index()+1, row.el)
	}
	table.adjustRowCount(1)
	table.ensureColumnCount(len(values))
	d.modified = true
	d.logger.Debug("sheetxml.add_row", "worksheet", ws.Name(), "cells", len(values))
	return row, true
}

// AddRowAligned pads or truncates values to the header width before
// appending. A worksheet with no header row keeps the values as given.
func (d *Document) AddRowAligned(ws *Worksheet, values []string) (*Row, bool) {
	width := len(ws.Headers())
	if width == 0 {
		width = len(values)
	}
	aligned := make([]string, width)
	copy(aligned, values)
	return d.AddRow(ws, aligned, AtEnd)
}

// RemoveRow detaches row from the worksheet table. It fails when the row
// is not a direct child of that table.
func (d *Document) RemoveRow(ws *Worksheet, row *Row) bool {
	table, ok := ws.Table()
	if !ok || !table.Contains(row) {
		return false
	}
	table.el.RemoveChild(row.el)
	table.adjustRowCount(-1)
	d.modified = true
	return true
}

// SetCellValue writes value into the cell at a physical position, padding
// the row with empty String cells when it is too short.
func (d *Document) SetCellValue(ws *Worksheet, rowIndex, colIndex int, value string) bool {
	if rowIndex < 0 || colIndex < 0 {
		return false
	}
	table, ok := ws.Table()
	if !ok {
		return false
	}
	rows := table.Rows()
	if rowIndex >= len(rows) {
		return false
	}
	row := rows[rowIndex]
	cells := row.Cells()
	for len(cells) <= colIndex {
		cell := &Cell{doc: d, el: d.newElement(tagCell)}
		cell.SetData("", TypeString)
		row.el.AddChild(cell.el)
		cells = append(cells, cell)
	}
	d.EnsureHighlightStyles()
	cell := cells[colIndex]
	cell.SetValue(value)
	cell.SetStyle(StyleModified)
	d.modified = true
	return true
}

// SetSparseCell writes value at logical column col, keeping the row's
// explicit indexes valid. An existing cell is updated in place. Otherwise a
// new cell carrying an explicit index is inserted before the first cell
// past col, or appended.
func (d *Document) SetSparseCell(row *Row, col int, value, styleID string) *Cell {
	cells := row.Cells()
	positions := columnPositions(cells)
	var target *Cell
	for i, pos := range positions {
		if pos == col {
			target = cells[i]
			break
		}
		if pos > col {
			target = d.newIndexedCell(col)
			row.el.InsertChildAt(cells[i].el.Index(), target.el)
			break
		}
	}
	if target == nil {
		target = d.newIndexedCell(col)
		row.el.AddChild(target.el)
	}
	target.SetValue(value)
	if styleID != "" {
		d.EnsureHighlightStyles()
		target.SetStyle(styleID)
	}
	d.modified = true
	return target
}

func (d *Document) newIndexedCell(col int) *Cell {
	el := d.newElement(tagCell)
	d.setAttr(el, attrIndex, strconv.Itoa(col+1))
	return &Cell{doc: d, el: el}
}
