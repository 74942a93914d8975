package ots

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/require"
)

// buildTTC wraps one sfnt into a collection in which both members point
// at the same font header, so every table is shared.
func buildTTC(sfnt []byte, numFonts int) []byte {
	headerSize := 12 + 4*numFonts
	b := &bytesBuilder{}
	b.u32(ttcTag)
	b.u32(0x00010000)
	b.u32(uint32(numFonts))
	for i := 0; i < numFonts; i++ {
		b.u32(uint32(headerSize))
	}
	data := append(b.bytes(), sfnt...)

	// Shift the member's directory offsets to their new absolute
	// positions within the collection file.
	var numTables = int(uint16(data[headerSize+4])<<8 | uint16(data[headerSize+5]))
	for i := 0; i < numTables; i++ {
		rec := headerSize + 12 + 16*i
		off := uint32(data[rec+8])<<24 | uint32(data[rec+9])<<16 |
			uint32(data[rec+10])<<8 | uint32(data[rec+11])
		off += uint32(headerSize)
		data[rec+8] = byte(off >> 24)
		data[rec+9] = byte(off >> 16)
		data[rec+10] = byte(off >> 8)
		data[rec+11] = byte(off)
	}
	return data
}

func TestProcessCollectionMember(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	plain := buildSFNT(minimalFont())
	ttc := buildTTC(plain, 2)

	for index := -1; index < 2; index++ {
		out := NewExpandingMemoryStream()
		err := ProcessFont(out, ttc, NewContext(), index)
		require.NoError(t, err, "collection member %d rejected", index)
	}

	out := NewExpandingMemoryStream()
	require.Error(t, ProcessFont(out, ttc, NewContext(), 2),
		"font index beyond collection size accepted")
}

func TestProcessCollectionMatchesSingleFont(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	plain := buildSFNT(minimalFont())
	single, err := sanitize(t, plain)
	require.NoError(t, err)

	out := NewExpandingMemoryStream()
	require.NoError(t, ProcessFont(out, buildTTC(plain, 2), NewContext(), 1))
	require.Equal(t, single, out.Bytes(),
		"a collection member must serialize like the standalone font")
}
