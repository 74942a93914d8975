package ots

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/sfnt"
)

func sanitize(t *testing.T, data []byte) ([]byte, error) {
	t.Helper()
	out := NewExpandingMemoryStream()
	err := Process(out, data, NewContext())
	return out.Bytes(), err
}

func TestProcessMinimalFont(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	output, err := sanitize(t, buildSFNT(minimalFont()))
	require.NoError(t, err)
	require.NotEmpty(t, output)

	// The output must be acceptable to a downstream parser.
	parsed, err := sfnt.Parse(output)
	require.NoError(t, err, "downstream parser rejected sanitized output")
	require.Equal(t, 2, parsed.NumGlyphs())
}

func TestProcessIsIdempotent(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	once, err := sanitize(t, buildSFNT(minimalFont()))
	require.NoError(t, err)
	twice, err := sanitize(t, once)
	require.NoError(t, err)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("re-sanitized output differs from first pass (-first +second):\n%s", diff)
	}
}

func TestProcessRewritesNameTable(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	output, err := sanitize(t, buildSFNT(minimalFont()))
	require.NoError(t, err)

	entries, base := directoryOf(t, output)
	nameEntry, ok := entries[TagName]
	require.True(t, ok, "output has no name table")
	name := base[nameEntry.offset : nameEntry.offset+nameEntry.length]
	// Canonical rewrite: version 0, 9 records.
	require.Equal(t, uint16(0), uint16(name[0])<<8|uint16(name[1]))
	require.Equal(t, uint16(9), uint16(name[2])<<8|uint16(name[3]))
}

func TestProcessChecksums(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	output, err := sanitize(t, buildSFNT(minimalFont()))
	require.NoError(t, err)

	entries, base := directoryOf(t, output)
	var whole uint32
	for i := 0; i+4 <= len(output); i += 4 {
		whole += uint32(output[i])<<24 | uint32(output[i+1])<<16 |
			uint32(output[i+2])<<8 | uint32(output[i+3])
	}
	require.Equal(t, uint32(checksumMagic), whole,
		"whole-file checksum plus adjustment must equal the magic value")

	for tag, entry := range entries {
		require.Zero(t, entry.offset%4, "table %s not 4-byte aligned", tag)
		payload := base[entry.offset : entry.offset+entry.length]
		sum := computeChecksum(payload)
		if tag == TagHead {
			// The head checksum is computed with a zeroed adjustment.
			adj := uint32(payload[8])<<24 | uint32(payload[9])<<16 |
				uint32(payload[10])<<8 | uint32(payload[11])
			sum -= adj
		}
		require.Equal(t, entry.checksum, sum, "checksum mismatch for table %s", tag)
	}
}

// directoryOf decodes the output table directory for verification.
func directoryOf(t *testing.T, output []byte) (map[Tag]tableRecord, []byte) {
	t.Helper()
	buf := NewBuffer(output)
	var version uint32
	var numTables uint16
	require.True(t, buf.ReadU32(&version))
	require.True(t, buf.ReadU16(&numTables))
	require.True(t, buf.Skip(6))
	entries := make(map[Tag]tableRecord, numTables)
	var prev Tag
	for i := 0; i < int(numTables); i++ {
		var rec tableRecord
		require.True(t, buf.ReadTag(&rec.tag))
		require.True(t, buf.ReadU32(&rec.checksum))
		require.True(t, buf.ReadU32(&rec.offset))
		require.True(t, buf.ReadU32(&rec.length))
		require.True(t, rec.tag > prev, "directory not strictly sorted")
		prev = rec.tag
		entries[rec.tag] = rec
	}
	return entries, output
}

func TestProcessLargeLocaOffsets(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	// Glyph 0 fills the whole 0xFFFE-byte span, mostly with hinting
	// bytecode; glyph 1 is empty.
	const bytecodeLen = 0xfffe - 17
	g := &bytesBuilder{}
	g.s16(1)                      // one contour
	g.s16(0).s16(0).s16(1).s16(1) // bbox
	g.u16(0)                      // end point index 0 -> one point
	g.u16(bytecodeLen)
	g.raw(make([]byte, bytecodeLen))
	g.u8(0x01 | 0x02 | 0x04) // on-curve, x-short, y-short
	g.u8(1).u8(1)            // dx, dy

	maxp := buildMaxp(2)
	// raise maxSizeOfInstructions so the bytecode is admissible
	maxp[6+2*10] = byte(bytecodeLen >> 8)
	maxp[6+2*10+1] = byte(bytecodeLen & 0xff)

	tables := minimalFont()
	tables["maxp"] = maxp
	tables["glyf"] = g.bytes()
	tables["loca"] = buildLocaShort([]uint32{0, 0xfffe, 0xfffe})

	output, err := sanitize(t, buildSFNT(tables))
	require.NoError(t, err)

	entries, base := directoryOf(t, output)
	head := base[entries[TagHead].offset:]
	indexToLocFormat := int16(uint16(head[50])<<8 | uint16(head[51]))
	require.Contains(t, []int16{0, 1}, indexToLocFormat)
}

func TestProcessCompositeComponentOutOfRange(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	tables := minimalFont()
	// Glyph 1 is a composite pointing at glyph 2 == maxp.numGlyphs.
	comp := &bytesBuilder{}
	comp.s16(-1)                     // composite
	comp.s16(0).s16(0).s16(0).s16(0) // bbox
	comp.u16(0)                      // flags: no words, no more components
	comp.u16(2)                      // component glyph out of range
	comp.u16(0)                      // one-byte args x2 (packed in a u16)
	tables["glyf"] = comp.bytes()
	tables["loca"] = buildLocaShort([]uint32{0, 0, uint32(len(comp.bytes()))})

	_, err := sanitize(t, buildSFNT(tables))
	require.Error(t, err, "component glyph index beyond numGlyphs must be rejected")
}

func TestProcessDuplicateDirectoryTags(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	data := buildSFNT(minimalFont())
	// Duplicate the first directory record's tag into the second.
	copy(data[12+16:12+20], data[12:16])
	_, err := sanitize(t, data)
	require.Error(t, err, "directory with duplicate tags must be rejected")
}

func TestProcessRejectsTruncatedInput(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	data := buildSFNT(minimalFont())
	for _, cut := range []int{0, 3, 11, 40, len(data) / 2} {
		if _, err := sanitize(t, data[:cut]); err == nil {
			t.Errorf("truncation to %d bytes not rejected", cut)
		}
	}
}

func TestProcessDropsUnknownTables(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	tables := minimalFont()
	tables["zzzz"] = []byte{1, 2, 3, 4}
	output, err := sanitize(t, buildSFNT(tables))
	require.NoError(t, err)
	entries, _ := directoryOf(t, output)
	_, present := entries[T("zzzz")]
	require.False(t, present, "unrecognized table leaked into output")
}

func TestProcessPassthruByPolicy(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	tables := minimalFont()
	tables["Silf"] = payload

	ctx := NewContext()
	ctx.TableAction = func(tag Tag) TableAction {
		if tag == TagSilf {
			return ActionPassthru
		}
		return ActionDefault
	}
	out := NewExpandingMemoryStream()
	require.NoError(t, Process(out, buildSFNT(tables), ctx))

	entries, base := directoryOf(t, out.Bytes())
	entry, present := entries[TagSilf]
	require.True(t, present, "passthru table missing from output")
	require.Equal(t, payload, base[entry.offset:entry.offset+entry.length])
}

func TestProcessDropColorBitmapPolicy(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	tables := minimalFont()
	tables["CBDT"] = []byte{0, 2, 0, 0}
	tables["CBLC"] = []byte{0, 2, 0, 0}

	ctx := NewContext()
	ctx.DropColorBitmapTables = true
	out := NewExpandingMemoryStream()
	require.NoError(t, Process(out, buildSFNT(tables), ctx))
	entries, _ := directoryOf(t, out.Bytes())
	for _, tag := range []Tag{TagCBDT, TagCBLC} {
		if _, present := entries[tag]; present {
			t.Errorf("%s still present with drop-color-bitmaps set", tag)
		}
	}
}

func FuzzProcess(f *testing.F) {
	f.Add(buildSFNT(minimalFont()))
	f.Add([]byte("ttcf"))
	f.Add([]byte("wOFF"))
	f.Add([]byte{})
	f.Fuzz(func(t *testing.T, data []byte) {
		out := NewExpandingMemoryStream()
		// Must not crash or hang; the result itself is irrelevant.
		_ = Process(out, data, NewContext())
	})
}
