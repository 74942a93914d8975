package ots

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

// buildCFF1 assembles a single-glyph CFF with the given charstring and
// no subroutines.
func buildCFF1(charstring []byte) []byte {
	// Fixed-size pieces first, so the CharStrings offset is known.
	header := []byte{1, 0, 4, 1}

	nameIndex := (&bytesBuilder{}).
		u16(1).u8(1).u8(1).u8(5).raw([]byte("Test")).bytes()

	// Top DICT: CharStrings offset as a 5-byte operand (29 + 4 bytes),
	// patched below, then operator 17.
	topDict := []byte{29, 0, 0, 0, 0, 17}
	topDictIndex := (&bytesBuilder{}).
		u16(1).u8(1).u8(1).u8(uint8(1 + len(topDict))).raw(topDict).bytes()

	stringIndex := (&bytesBuilder{}).u16(0).bytes()
	gsubrIndex := (&bytesBuilder{}).u16(0).bytes()

	charStringsOffset := len(header) + len(nameIndex) + len(topDictIndex) +
		len(stringIndex) + len(gsubrIndex)

	b := &bytesBuilder{}
	b.raw(header).raw(nameIndex).raw(topDictIndex).raw(stringIndex).raw(gsubrIndex)
	b.u16(1).u8(1).u8(1).u8(uint8(1 + len(charstring))).raw(charstring)

	data := b.bytes()
	// Patch the CharStrings offset into the Top DICT operand.
	patch := len(header) + len(nameIndex) + 5 // INDEX header of the Top DICT
	data[patch+1] = byte(charStringsOffset >> 24)
	data[patch+2] = byte(charStringsOffset >> 16)
	data[patch+3] = byte(charStringsOffset >> 8)
	data[patch+4] = byte(charStringsOffset)
	return data
}

func cffTestFont(numGlyphs uint16) *Font {
	font := newFont(NewContext(), sfntVersionOTTO)
	maxp := newMaxpTable(font)
	maxp.NumGlyphs = numGlyphs
	font.AddTable(maxp)
	return font
}

func TestCFFMinimalFont(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	table := newCFFTable(cffTestFont(1), TagCFF)
	if err := table.Parse(buildCFF1([]byte{csEndChar})); err != nil {
		t.Errorf("minimal CFF rejected: %v", err)
	}
	if table.PostScriptName != "Test" {
		t.Errorf("expected postscript name Test, got %q", table.PostScriptName)
	}
}

func TestCFFSubrIndexOutOfRange(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	// Three zeros then callsubr against zero local subrs.
	table := newCFFTable(cffTestFont(1), TagCFF)
	if err := table.Parse(buildCFF1([]byte{139, 139, 139, csCallSubr})); err == nil {
		t.Error("charstring calling into empty subr index accepted")
	}
}

func TestCFFGlyphCountMismatch(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	table := newCFFTable(cffTestFont(2), TagCFF)
	if err := table.Parse(buildCFF1([]byte{csEndChar})); err == nil {
		t.Error("CharStrings count differing from maxp accepted")
	}
}

func TestCFFBadPostScriptName(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	data := buildCFF1([]byte{csEndChar})
	// The name bytes sit right after the Name INDEX header.
	copy(data[4+5:], "Te(t")
	table := newCFFTable(cffTestFont(1), TagCFF)
	if err := table.Parse(data); err == nil {
		t.Error("postscript name with delimiter accepted")
	}
}

func TestCFFTruncatedIndex(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	data := buildCFF1([]byte{csEndChar})
	for cut := 4; cut < len(data); cut += 3 {
		table := newCFFTable(cffTestFont(1), TagCFF)
		if err := table.Parse(data[:cut]); err == nil {
			t.Errorf("CFF truncated to %d bytes accepted", cut)
		}
	}
}
