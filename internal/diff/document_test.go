package diff

import (
	"testing"

	"formedit/engine/internal/sheetxml"
)

const beforeXML = `<?xml version="1.0"?>
<Workbook xmlns="urn:schemas-microsoft-com:office:spreadsheet" xmlns:ss="urn:schemas-microsoft-com:office:spreadsheet">
 <Worksheet ss:Name="survey"><Table>
  <Row><Cell><Data ss:Type="String">type</Data></Cell><Cell><Data ss:Type="String">name</Data></Cell></Row>
  <Row><Cell><Data ss:Type="String">text</Data></Cell><Cell><Data ss:Type="String">site</Data></Cell></Row>
 </Table></Worksheet>
 <Worksheet ss:Name="settings"><Table>
  <Row><Cell><Data ss:Type="String">form_id</Data></Cell></Row>
 </Table></Worksheet>
 <Worksheet ss:Name="old"><Table/></Worksheet>
</Workbook>`

const afterXML = `<?xml version="1.0"?>
<Workbook xmlns="urn:schemas-microsoft-com:office:spreadsheet" xmlns:ss="urn:schemas-microsoft-com:office:spreadsheet">
 <Worksheet ss:Name="survey"><Table>
  <Row><Cell><Data ss:Type="String">type</Data></Cell><Cell><Data ss:Type="String">name</Data></Cell></Row>
  <Row><Cell><Data ss:Type="String">text</Data></Cell><Cell><Data ss:Type="String">site</Data></Cell></Row>
  <Row ss:StyleID="AIAdded"><Cell><Data ss:Type="String">integer</Data></Cell><Cell ss:Index="2"><Data ss:Type="String">age</Data></Cell></Row>
 </Table></Worksheet>
 <Worksheet ss:Name="settings"><Table>
  <Row><Cell><Data ss:Type="String">form_id</Data></Cell></Row>
 </Table></Worksheet>
 <Worksheet ss:Name="new"><Table/></Worksheet>
</Workbook>`

func parse(t *testing.T, data string) *sheetxml.Document {
	t.Helper()
	doc, err := sheetxml.Parse([]byte(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestDocumentDiff(t *testing.T) {
	diffs := DocumentDiff(parse(t, beforeXML), parse(t, afterXML), 0)
	status := map[string]SheetDiff{}
	for _, d := range diffs {
		status[d.Worksheet] = d
	}
	if len(diffs) != 4 {
		t.Fatalf("expected 4 worksheet entries, got %d", len(diffs))
	}
	survey := status["survey"]
	if survey.Status != SheetChanged || survey.Added != 1 || survey.Removed != 0 {
		t.Fatalf("unexpected survey diff %+v", survey)
	}
	var added string
	for _, line := range survey.Hunks[0].Lines {
		if line.Type == LineAdded {
			added = line.Text
		}
	}
	if added != "integer | age [AIAdded]" {
		t.Fatalf("unexpected added line %q", added)
	}
	if status["settings"].Status != SheetUnchanged || len(status["settings"].Hunks) != 0 {
		t.Fatalf("settings should be unchanged")
	}
	if status["new"].Status != SheetAdded || status["old"].Status != SheetRemoved {
		t.Fatalf("unexpected added/removed sheets %+v %+v", status["new"], status["old"])
	}
	if diffs[len(diffs)-1].Worksheet != "old" {
		t.Fatalf("removed worksheets should come last")
	}
}

func TestDocumentDiffTruncates(t *testing.T) {
	diffs := DocumentDiff(parse(t, beforeXML), parse(t, afterXML), 2)
	for _, d := range diffs {
		if d.Worksheet == "survey" && !d.Truncated {
			t.Fatalf("expected survey diff to be truncated")
		}
	}
}
