package ots

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

// buildEBDT returns a bitmap data table with one format-1 glyph image
// (1x1 pixel, bit depth 1) right after the version header.
func buildEBDT() []byte {
	b := &bytesBuilder{}
	b.u16(2).u16(0) // version 2.0
	b.u8(1).u8(1)   // height, width
	b.u8(0).u8(0)   // bearings
	b.u8(1)         // advance
	b.u8(0x80)      // one row of pixels
	return b.bytes()
}

// buildEBLC returns a location table with one strike whose single
// format-1 index subtable addresses the glyph image in buildEBDT. The
// index-implied image size is adjustable for mismatch tests.
func buildEBLC(imageSize uint32) []byte {
	b := &bytesBuilder{}
	b.u16(2).u16(0) // version 2.0
	b.u32(1)        // one strike

	// bitmapSize record (48 bytes)
	b.u32(56)               // index subtable array offset (8 + 48)
	b.u32(16)               // index tables size
	b.u32(1)                // one index subtable
	b.u32(0)                // color ref
	b.raw(make([]byte, 24)) // line metrics
	b.u16(1).u16(1)         // start/end glyph
	b.u8(1).u8(1)           // ppemX, ppemY
	b.u8(1)                 // bit depth
	b.u8(1)                 // flags: horizontal

	// index subtable array: one entry
	b.u16(1).u16(1) // first/last glyph
	b.u32(8)        // additional offset

	// index subtable, format 1
	b.u16(1) // index format
	b.u16(1) // image format: small metrics, byte aligned
	b.u32(4) // image data starts after the EBDT version field
	b.u32(0).u32(imageSize)
	return b.bytes()
}

func bitmapTestFont(t *testing.T) *Font {
	t.Helper()
	font := newFont(NewContext(), sfntVersionTrueType)
	ebdt := newEBDTTable(font)
	if err := ebdt.Parse(buildEBDT()); err != nil {
		t.Fatalf("EBDT rejected: %v", err)
	}
	font.AddTable(ebdt)
	return font
}

func TestEBLCWalksIntoEBDT(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	font := bitmapTestFont(t)
	eblc := newEBLCTable(font)
	if err := eblc.Parse(buildEBLC(6)); err != nil {
		t.Errorf("valid bitmap tables rejected: %v", err)
	}
}

func TestEBLCImageSizeMismatch(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	// The index offsets imply 5 bytes but the format computes 6.
	font := bitmapTestFont(t)
	eblc := newEBLCTable(font)
	if err := eblc.Parse(buildEBLC(5)); err == nil {
		t.Error("image size disagreement accepted")
	}
}

func TestEBLCRejectsBadBitDepth(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	font := bitmapTestFont(t)
	data := buildEBLC(6)
	data[8+44+2] = 3 // bit depth must be 1, 2, 4 or 8
	eblc := newEBLCTable(font)
	if err := eblc.Parse(data); err == nil {
		t.Error("bit depth 3 accepted")
	}
}

func TestEBLCRequiresEBDT(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	font := newFont(NewContext(), sfntVersionTrueType)
	eblc := newEBLCTable(font)
	if err := eblc.Parse(buildEBLC(6)); err == nil {
		t.Error("EBLC without EBDT accepted")
	}
}

func TestEBDTRejectsObsoleteFormats(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	font := bitmapTestFont(t)
	ebdt := font.EBDT()
	for _, format := range []uint16{3, 4} {
		if _, err := ebdt.parseGlyphBitmapVariableMetrics(format, 4, 1); err == nil {
			t.Errorf("obsolete image format %d accepted", format)
		}
	}
}
