package ots

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/require"
)

// buildWOFF wraps the tables of an sfnt into a WOFF container,
// compressing every table whose deflated form is smaller.
func buildWOFF(t *testing.T, sfnt []byte) []byte {
	t.Helper()
	entries, _ := directoryOf(t, sfnt)

	type woffEntry struct {
		rec        tableRecord
		compressed []byte
	}
	ordered := make([]woffEntry, 0, len(entries))
	for _, rec := range entries {
		payload := sfnt[rec.offset : rec.offset+rec.length]
		var deflated bytes.Buffer
		w := zlib.NewWriter(&deflated)
		_, err := w.Write(payload)
		require.NoError(t, err)
		require.NoError(t, w.Close())
		compressed := deflated.Bytes()
		if len(compressed) >= len(payload) {
			compressed = payload
		}
		ordered = append(ordered, woffEntry{rec: rec, compressed: compressed})
	}
	// WOFF directories are sorted by tag, like sfnt ones.
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j].rec.tag < ordered[j-1].rec.tag; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}

	b := &bytesBuilder{}
	b.u32(woffSignature)
	b.u32(sfntVersionTrueType)
	b.u32(0) // total length, patched below
	b.u16(uint16(len(ordered))).u16(0)
	totalSfnt := uint32(12 + 16*len(ordered))
	for _, e := range ordered {
		totalSfnt += (e.rec.length + 3) &^ 3
	}
	b.u32(totalSfnt)
	b.u16(1).u16(0)        // font version
	b.u32(0).u32(0).u32(0) // metadata
	b.u32(0).u32(0)        // private block

	offset := uint32(woffHeaderSize + woffTableRecordSize*len(ordered))
	for _, e := range ordered {
		b.u32(uint32(e.rec.tag))
		b.u32(offset)
		b.u32(uint32(len(e.compressed)))
		b.u32(e.rec.length)
		b.u32(e.rec.checksum)
		offset += (uint32(len(e.compressed)) + 3) &^ 3
	}
	for _, e := range ordered {
		b.raw(e.compressed)
		for len(b.buf)%4 != 0 {
			b.u8(0)
		}
	}
	data := b.bytes()
	data[8] = byte(len(data) >> 24)
	data[9] = byte(len(data) >> 16)
	data[10] = byte(len(data) >> 8)
	data[11] = byte(len(data))
	return data
}

func TestProcessWOFF(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	plain := buildSFNT(minimalFont())
	woff := buildWOFF(t, plain)

	fromWoff, err := sanitize(t, woff)
	require.NoError(t, err, "WOFF-wrapped font rejected")

	fromPlain, err := sanitize(t, plain)
	require.NoError(t, err)
	require.Equal(t, fromPlain, fromWoff,
		"WOFF path and plain path must produce identical output")
}

func TestWOFFRejectsBadLength(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	woff := buildWOFF(t, buildSFNT(minimalFont()))
	woff[8] ^= 0xff // corrupt the length field
	_, err := sanitize(t, woff)
	require.Error(t, err)
}

func TestWOFF2RequiresOptIn(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	data := []byte{'w', 'O', 'F', '2', 0, 0, 0, 0}
	out := NewExpandingMemoryStream()
	err := Process(out, data, NewContext())
	require.Error(t, err, "WOFF2 must be rejected unless enabled")
}
