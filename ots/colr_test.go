package ots

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

// colrTestFont returns a font carrying just the maxp and CPAL bounds
// the COLR parser needs.
func colrTestFont(numGlyphs, numPaletteEntries uint16) *Font {
	font := newFont(NewContext(), sfntVersionTrueType)
	maxp := newMaxpTable(font)
	maxp.NumGlyphs = numGlyphs
	font.AddTable(maxp)
	cpal := newCPALTable(font)
	cpal.NumPaletteEntries = numPaletteEntries
	font.AddTable(cpal)
	return font
}

// buildCOLRv1 assembles a version 1 table whose base glyph list holds
// one record for glyphID with the given paint record bytes.
func buildCOLRv1(glyphID uint16, paint []byte) []byte {
	b := &bytesBuilder{}
	b.u16(1)  // version
	b.u16(0)  // numBaseGlyphRecords
	b.u32(0)  // baseGlyphRecordsOffset
	b.u32(0)  // layerRecordsOffset
	b.u16(0)  // numLayerRecords
	b.u32(34) // baseGlyphListOffset
	b.u32(0)  // layerListOffset
	b.u32(0)  // clipListOffset
	b.u32(0)  // varIdxMapOffset
	b.u32(0)  // varStoreOffset

	// base glyph list: one record, paint follows immediately
	b.u32(1)
	b.u16(glyphID)
	b.u32(10) // paint offset relative to the list
	b.raw(paint)
	return b.bytes()
}

func TestCOLRSelfReferentialColorGlyph(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	// A color glyph paint that references its own base glyph: the paint
	// only checks base glyph list membership and does not descend, so the
	// traversal terminates.
	font := colrTestFont(10, 2)
	paint := (&bytesBuilder{}).u8(11).u16(5).bytes() // PaintColrGlyph -> glyph 5
	colr := newCOLRTable(font)
	if err := colr.Parse(buildCOLRv1(5, paint)); err != nil {
		t.Errorf("self-referential color glyph rejected: %v", err)
	}
}

func TestCOLRColorGlyphOutsideBaseList(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	font := colrTestFont(10, 2)
	paint := (&bytesBuilder{}).u8(11).u16(6).bytes() // glyph 6 is not a base glyph
	colr := newCOLRTable(font)
	if err := colr.Parse(buildCOLRv1(5, paint)); err == nil {
		t.Error("color glyph paint referencing a non-base glyph accepted")
	}
}

func TestCOLRSolidPaintPaletteBounds(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	font := colrTestFont(10, 2)
	good := (&bytesBuilder{}).u8(2).u16(1).s16(0x4000).bytes()
	colr := newCOLRTable(font)
	if err := colr.Parse(buildCOLRv1(3, good)); err != nil {
		t.Errorf("valid solid paint rejected: %v", err)
	}

	// Palette index 2 with 2 entries is out of range; 0xFFFF is the
	// text-foreground exception.
	bad := (&bytesBuilder{}).u8(2).u16(2).s16(0x4000).bytes()
	colr = newCOLRTable(font)
	if err := colr.Parse(buildCOLRv1(3, bad)); err == nil {
		t.Error("solid paint with out-of-range palette index accepted")
	}

	foreground := (&bytesBuilder{}).u8(2).u16(0xffff).s16(0x4000).bytes()
	colr = newCOLRTable(font)
	if err := colr.Parse(buildCOLRv1(3, foreground)); err != nil {
		t.Errorf("solid paint with foreground palette index rejected: %v", err)
	}
}

func TestCOLRBaseGlyphOrder(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	font := colrTestFont(10, 2)
	b := &bytesBuilder{}
	b.u16(1).u16(0).u32(0).u32(0).u16(0)
	b.u32(34).u32(0).u32(0).u32(0).u32(0)
	// two records out of order
	b.u32(2)
	b.u16(7).u32(16)
	b.u16(5).u32(16)
	b.raw((&bytesBuilder{}).u8(2).u16(0).s16(0).bytes())
	colr := newCOLRTable(font)
	if err := colr.Parse(b.bytes()); err == nil {
		t.Error("unordered base glyph list accepted")
	}
}

func TestCOLRVersion0Records(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	font := colrTestFont(10, 2)
	b := &bytesBuilder{}
	b.u16(0) // version
	b.u16(1) // one base glyph record
	b.u32(14)
	b.u32(20)
	b.u16(1)               // one layer record
	b.u16(3).u16(0).u16(1) // base glyph 3, first layer 0, one layer
	b.u16(4).u16(1)        // layer: glyph 4, palette 1
	colr := newCOLRTable(font)
	if err := colr.Parse(b.bytes()); err != nil {
		t.Errorf("valid version 0 table rejected: %v", err)
	}

	// Layer index out of bounds.
	b = &bytesBuilder{}
	b.u16(0).u16(1).u32(14).u32(20).u16(1)
	b.u16(3).u16(1).u16(1) // first layer 1 + 1 layer > 1 record
	b.u16(4).u16(1)
	colr = newCOLRTable(font)
	if err := colr.Parse(b.bytes()); err == nil {
		t.Error("base glyph record with out-of-range layers accepted")
	}
}
