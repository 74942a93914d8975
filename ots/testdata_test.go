package ots

import (
	"encoding/binary"
	"sort"
)

// Builders for synthetic fonts used across the package tests. All
// multi-byte values are big-endian, like the format itself.

type bytesBuilder struct {
	buf []byte
}

func (b *bytesBuilder) u8(v uint8) *bytesBuilder {
	b.buf = append(b.buf, v)
	return b
}

func (b *bytesBuilder) u16(v uint16) *bytesBuilder {
	b.buf = binary.BigEndian.AppendUint16(b.buf, v)
	return b
}

func (b *bytesBuilder) s16(v int16) *bytesBuilder {
	return b.u16(uint16(v))
}

func (b *bytesBuilder) u32(v uint32) *bytesBuilder {
	b.buf = binary.BigEndian.AppendUint32(b.buf, v)
	return b
}

func (b *bytesBuilder) u64(v uint64) *bytesBuilder {
	b.buf = binary.BigEndian.AppendUint64(b.buf, v)
	return b
}

func (b *bytesBuilder) tag(t string) *bytesBuilder {
	return b.u32(uint32(T(t)))
}

func (b *bytesBuilder) raw(data []byte) *bytesBuilder {
	b.buf = append(b.buf, data...)
	return b
}

func (b *bytesBuilder) bytes() []byte { return b.buf }

// buildSFNT assembles an sfnt from table payloads, with a sorted
// directory and 4-byte padded tables. Checksums in the directory are
// filled with real sums although the sanitizer ignores them on input.
func buildSFNT(tables map[string][]byte) []byte {
	tags := make([]string, 0, len(tables))
	for tag := range tables {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return T(tags[i]) < T(tags[j]) })

	b := &bytesBuilder{}
	searchRange, entrySelector, rangeShift := searchParams(len(tags), 16)
	b.u32(sfntVersionTrueType)
	b.u16(uint16(len(tags)))
	b.u16(searchRange).u16(entrySelector).u16(rangeShift)

	offset := uint32(12 + 16*len(tags))
	for _, tag := range tags {
		data := tables[tag]
		b.tag(tag)
		b.u32(computeChecksum(data))
		b.u32(offset)
		b.u32(uint32(len(data)))
		offset += (uint32(len(data)) + 3) &^ 3
	}
	for _, tag := range tags {
		data := tables[tag]
		b.raw(data)
		for len(b.buf)%4 != 0 {
			b.u8(0)
		}
	}
	return b.bytes()
}

func buildHead(indexToLocFormat int16) []byte {
	b := &bytesBuilder{}
	b.u32(0x00010000) // version
	b.u32(0)          // revision
	b.u32(0)          // checksum adjustment
	b.u32(headMagic)
	b.u16(0)    // flags
	b.u16(1000) // units per em
	b.u64(0)    // created
	b.u64(0)    // modified
	b.s16(0).s16(0).s16(0).s16(0)
	b.u16(0) // mac style
	b.u16(8) // lowest rec ppem
	b.s16(2) // direction hint
	b.s16(indexToLocFormat)
	b.s16(0) // glyph data format
	return b.bytes()
}

func buildMaxp(numGlyphs uint16) []byte {
	b := &bytesBuilder{}
	b.u32(0x00010000)
	b.u16(numGlyphs)
	for i := 0; i < 13; i++ {
		b.u16(0)
	}
	return b.bytes()
}

// buildLocaShort writes byte offsets in the 16-bit storage format
// (halved values).
func buildLocaShort(byteOffsets []uint32) []byte {
	b := &bytesBuilder{}
	for _, off := range byteOffsets {
		b.u16(uint16(off / 2))
	}
	return b.bytes()
}

func buildHhea(numMetrics uint16) []byte {
	b := &bytesBuilder{}
	b.u32(0x00010000)
	b.s16(800)  // ascender
	b.s16(-200) // descender
	b.s16(0)    // line gap
	b.u16(500)  // advance width max
	b.s16(0).s16(0).s16(0)
	b.s16(1).s16(0).s16(0) // caret slope, offset
	b.s16(0).s16(0).s16(0).s16(0)
	b.s16(0) // metric data format
	b.u16(numMetrics)
	return b.bytes()
}

func buildHmtx(numMetrics, numGlyphs int) []byte {
	b := &bytesBuilder{}
	for i := 0; i < numMetrics; i++ {
		b.u16(500).s16(0)
	}
	for i := numMetrics; i < numGlyphs; i++ {
		b.s16(0)
	}
	return b.bytes()
}

// buildCmapFormat4 maps U+0020 to glyph 0 through a two-segment
// format 4 subtable under (3, 1).
func buildCmapFormat4() []byte {
	sub := &bytesBuilder{}
	sub.u16(4)                  // format
	sub.u16(32)                 // length
	sub.u16(0)                  // language
	sub.u16(4)                  // segCountX2
	sub.u16(4).u16(1).u16(0)    // searchRange, entrySelector, rangeShift
	sub.u16(0x0020).u16(0xffff) // end codes
	sub.u16(0)                  // reserved pad
	sub.u16(0x0020).u16(0xffff) // start codes
	sub.u16(0xffe0).u16(1)      // id deltas
	sub.u16(0).u16(0)           // id range offsets

	b := &bytesBuilder{}
	b.u16(0) // version
	b.u16(1) // numTables
	b.u16(3).u16(1).u32(12)
	b.raw(sub.bytes())
	return b.bytes()
}

func buildName() []byte {
	b := &bytesBuilder{}
	b.u16(0).u16(0).u16(6)
	return b.bytes()
}

func buildPost() []byte {
	b := &bytesBuilder{}
	b.u32(0x00030000)
	b.u32(0) // italic angle
	b.s16(0).s16(0)
	b.u32(0) // fixed pitch
	b.u32(0).u32(0).u32(0).u32(0)
	return b.bytes()
}

// minimalFont is the smallest complete test font: two glyphs, both empty.
func minimalFont() map[string][]byte {
	return map[string][]byte{
		"head": buildHead(0),
		"maxp": buildMaxp(2),
		"loca": buildLocaShort([]uint32{0, 0, 0}),
		"glyf": {0},
		"cmap": buildCmapFormat4(),
		"hhea": buildHhea(2),
		"hmtx": buildHmtx(2, 2),
		"name": buildName(),
		"post": buildPost(),
	}
}
