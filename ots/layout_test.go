package ots

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func testReporter() *tableBase {
	return &tableBase{font: newFont(NewContext(), sfntVersionTrueType), tag: TagGSUB}
}

func TestParseCoverageFormat1(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	rep := testReporter()
	good := (&bytesBuilder{}).u16(1).u16(3).u16(1).u16(5).u16(9).bytes()
	if err := parseCoverage(rep, good, 100, 3); err != nil {
		t.Errorf("valid coverage rejected: %v", err)
	}
	if err := parseCoverage(rep, good, 100, 4); err == nil {
		t.Error("coverage with wrong expected count accepted")
	}
	if err := parseCoverage(rep, good, 8, -1); err == nil {
		t.Error("coverage with out-of-range glyph accepted")
	}

	unsorted := (&bytesBuilder{}).u16(1).u16(2).u16(5).u16(5).bytes()
	if err := parseCoverage(rep, unsorted, 100, -1); err == nil {
		t.Error("coverage with repeated glyph accepted")
	}
}

func TestParseCoverageFormat2(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	rep := testReporter()
	good := (&bytesBuilder{}).u16(2).u16(2).
		u16(1).u16(3).u16(0). // glyphs 1-3, coverage index 0
		u16(5).u16(6).u16(3). // glyphs 5-6, coverage index 3
		bytes()
	if err := parseCoverage(rep, good, 100, 5); err != nil {
		t.Errorf("valid coverage rejected: %v", err)
	}

	badIndex := (&bytesBuilder{}).u16(2).u16(2).
		u16(1).u16(3).u16(0).
		u16(5).u16(6).u16(2). // must be the running sum 3
		bytes()
	if err := parseCoverage(rep, badIndex, 100, -1); err == nil {
		t.Error("coverage with broken start coverage index accepted")
	}

	overlap := (&bytesBuilder{}).u16(2).u16(2).
		u16(1).u16(5).u16(0).
		u16(5).u16(6).u16(5).
		bytes()
	if err := parseCoverage(rep, overlap, 100, -1); err == nil {
		t.Error("coverage with overlapping ranges accepted")
	}
}

func TestParseClassDef(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	rep := testReporter()
	format1 := (&bytesBuilder{}).u16(1).u16(4).u16(3).u16(1).u16(2).u16(1).bytes()
	if err := parseClassDef(rep, format1, 100, 2); err != nil {
		t.Errorf("valid class definition rejected: %v", err)
	}
	if err := parseClassDef(rep, format1, 100, 1); err == nil {
		t.Error("class value above class count accepted")
	}

	format2 := (&bytesBuilder{}).u16(2).u16(1).u16(10).u16(20).u16(1).bytes()
	if err := parseClassDef(rep, format2, 100, 1); err != nil {
		t.Errorf("valid class definition rejected: %v", err)
	}
}

func TestParseDevice(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	rep := testReporter()
	// sizes 12..15, delta format 2 (4 bits per size): 4 sizes, 1 word
	device := (&bytesBuilder{}).u16(12).u16(15).u16(2).u16(0).bytes()
	if err := parseDevice(rep, device); err != nil {
		t.Errorf("valid device table rejected: %v", err)
	}

	badRange := (&bytesBuilder{}).u16(15).u16(12).u16(2).u16(0).bytes()
	if err := parseDevice(rep, badRange); err == nil {
		t.Error("device table with start > end accepted")
	}

	badFormat := (&bytesBuilder{}).u16(12).u16(15).u16(4).u16(0).bytes()
	if err := parseDevice(rep, badFormat); err == nil {
		t.Error("device table with delta format 4 accepted")
	}

	truncated := (&bytesBuilder{}).u16(1).u16(100).u16(1).bytes()
	if err := parseDevice(rep, truncated); err == nil {
		t.Error("truncated device table accepted")
	}
}

func TestParseScriptListRequiresSortedTags(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	rep := testReporter()
	// Two scripts in the wrong order.
	langSys := (&bytesBuilder{}).u16(0).u16(0xffff).u16(0).bytes()
	script := (&bytesBuilder{}).u16(4).u16(0).raw(langSys).bytes()

	list := &bytesBuilder{}
	list.u16(2)
	list.tag("latn").u16(14)
	list.tag("arab").u16(14 + uint16(len(script)))
	list.raw(script).raw(script)
	if err := parseScriptList(rep, list.bytes(), 0); err == nil {
		t.Error("script list with unsorted tags accepted")
	}
}
