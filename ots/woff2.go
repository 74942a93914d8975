package ots

import (
	"bytes"
	"io"
	"sort"

	"github.com/andybalholm/brotli"
)

// WOFF2 container decode
// https://www.w3.org/TR/WOFF2/
//
// WOFF2 compresses all table payloads in one Brotli stream and may
// additionally transform glyf/loca/hmtx. Reconstruction here covers the
// null transforms only: a transformed glyf or loca stream is rejected
// at this boundary and left to the dedicated decompressor in front of
// the sanitizer.

// woff2KnownTags is the fixed tag table of the WOFF2 table directory;
// flag values 0-62 index into it, 63 marks an explicit tag.
var woff2KnownTags = [63]string{
	"cmap", "head", "hhea", "hmtx", "maxp", "name", "OS/2", "post",
	"cvt ", "fpgm", "glyf", "loca", "prep", "CFF ", "VORG", "EBDT",
	"EBLC", "gasp", "hdmx", "kern", "LTSH", "PCLT", "VDMX", "vhea",
	"vmtx", "BASE", "GDEF", "GPOS", "GSUB", "EBSC", "JSTF", "MATH",
	"CBDT", "CBLC", "COLR", "CPAL", "SVG ", "sbix", "acnt", "avar",
	"bdat", "bloc", "bsln", "cvar", "fdsc", "feat", "fmtx", "fvar",
	"gvar", "hsty", "just", "lcar", "mort", "morx", "opbd", "prop",
	"trak", "Zapf", "Silf", "Glat", "Gloc", "Feat", "Sill",
}

// readUIntBase128 decodes the WOFF2 variable-length integer: up to five
// bytes of 7 bits each, most significant first, no leading zeros.
func readUIntBase128(table *Buffer, out *uint32) bool {
	var accum uint32
	for i := 0; i < 5; i++ {
		var b uint8
		if !table.ReadU8(&b) {
			return false
		}
		if i == 0 && b == 0x80 {
			return false // leading zero byte is invalid
		}
		if accum&0xfe000000 != 0 {
			return false // would overflow 32 bits
		}
		accum = accum<<7 | uint32(b&0x7f)
		if b&0x80 == 0 {
			*out = accum
			return true
		}
	}
	return false
}

func decodeWOFF2(ctx *Context, data []byte) ([]byte, error) {
	fail := func(format string, args ...interface{}) error {
		ctx.message(0, format, args...)
		return ParseError{Reason: "bad WOFF2 container"}
	}

	table := NewBuffer(data)
	var signature, flavor, length uint32
	var numTables, reserved uint16
	var totalSfntSize, totalCompressedSize uint32
	if !table.ReadU32(&signature) || !table.ReadU32(&flavor) || !table.ReadU32(&length) ||
		!table.ReadU16(&numTables) || !table.ReadU16(&reserved) ||
		!table.ReadU32(&totalSfntSize) || !table.ReadU32(&totalCompressedSize) {
		return nil, fail("failed to read WOFF2 header")
	}
	if reserved != 0 {
		return nil, fail("WOFF2 reserved field is %d", reserved)
	}
	if uint64(length) != uint64(len(data)) {
		return nil, fail("WOFF2 length field %d does not match file size %d", length, len(data))
	}
	if numTables == 0 {
		return nil, fail("WOFF2 carries no tables")
	}
	var metaOffset, metaLength, metaOrigLength, privOffset, privLength uint32
	if !table.Skip(4) || // majorVersion, minorVersion
		!table.ReadU32(&metaOffset) || !table.ReadU32(&metaLength) ||
		!table.ReadU32(&metaOrigLength) ||
		!table.ReadU32(&privOffset) || !table.ReadU32(&privLength) {
		return nil, fail("failed to read WOFF2 header")
	}
	if flavor == ttcTag {
		return nil, fail("WOFF2 collections are not supported")
	}

	type woff2Entry struct {
		tag    Tag
		length uint32
	}
	entries := make([]woff2Entry, 0, numTables)
	var totalOrig uint64
	for i := 0; i < int(numTables); i++ {
		var flags uint8
		if !table.ReadU8(&flags) {
			return nil, fail("failed to read WOFF2 table flags %d", i)
		}
		var tag Tag
		if flags&0x3f == 0x3f {
			if !table.ReadTag(&tag) {
				return nil, fail("failed to read WOFF2 table tag %d", i)
			}
		} else {
			tag = T(woff2KnownTags[flags&0x3f])
		}
		transform := (flags >> 6) & 0x03

		var origLength uint32
		if !readUIntBase128(table, &origLength) {
			return nil, fail("bad original length for WOFF2 table %s", tag)
		}

		// Null transform is 0 for most tables but 3 for glyf and loca;
		// any other combination implies a transformed stream.
		transformed := false
		if tag == TagGlyf || tag == TagLoca {
			transformed = transform != 3
		} else {
			transformed = transform != 0
		}
		if transformed {
			// The transformed length is present but useless here.
			var transformLength uint32
			if !readUIntBase128(table, &transformLength) {
				return nil, fail("bad transform length for WOFF2 table %s", tag)
			}
			return nil, fail("WOFF2 table %s uses a transformed stream; "+
				"decompress before sanitizing", tag)
		}

		entries = append(entries, woff2Entry{tag: tag, length: origLength})
		totalOrig += uint64(origLength)
	}

	compressed, ok := table.ReadBytes(int(totalCompressedSize))
	if !ok {
		return nil, fail("WOFF2 compressed block out of bounds")
	}

	r := brotli.NewReader(bytes.NewReader(compressed))
	decompressed := make([]byte, totalOrig)
	if _, err := io.ReadFull(r, decompressed); err != nil {
		return nil, fail("WOFF2 decompression: %v", err)
	}
	if n, _ := r.Read(make([]byte, 1)); n != 0 {
		return nil, fail("WOFF2 stream decompresses past the directory total")
	}

	// The WOFF2 directory is in physical order; the reassembled sfnt
	// directory must be sorted by tag.
	type sfntEntry struct {
		tag     Tag
		payload []byte
	}
	sfntEntries := make([]sfntEntry, 0, len(entries))
	pos := uint64(0)
	for _, entry := range entries {
		sfntEntries = append(sfntEntries, sfntEntry{
			tag:     entry.tag,
			payload: decompressed[pos : pos+uint64(entry.length)],
		})
		pos += uint64(entry.length)
	}
	sort.Slice(sfntEntries, func(i, j int) bool { return sfntEntries[i].tag < sfntEntries[j].tag })
	for i := 1; i < len(sfntEntries); i++ {
		if sfntEntries[i].tag == sfntEntries[i-1].tag {
			return nil, fail("WOFF2 directory repeats table %s", sfntEntries[i].tag)
		}
	}

	out := NewExpandingMemoryStream()
	s := NewSerializer(out)
	searchRange, entrySelector, rangeShift := searchParams(len(sfntEntries), 16)
	s.WriteU32(flavor)
	s.WriteU16(uint16(len(sfntEntries)))
	s.WriteU16(searchRange)
	s.WriteU16(entrySelector)
	s.WriteU16(rangeShift)
	offset := uint32(12 + 16*len(sfntEntries))
	for _, entry := range sfntEntries {
		checksum := computeChecksum(entry.payload)
		s.WriteTag(entry.tag)
		s.WriteU32(checksum)
		s.WriteU32(offset)
		s.WriteU32(uint32(len(entry.payload)))
		offset += (uint32(len(entry.payload)) + 3) &^ 3
	}
	for _, entry := range sfntEntries {
		s.Write(entry.payload)
		s.PadToAlignment(4)
	}
	return out.Bytes(), nil
}

// computeChecksum sums a byte span as big-endian uint32 words, zero
// padded to a multiple of four.
func computeChecksum(data []byte) uint32 {
	var sum uint32
	for len(data) >= 4 {
		sum += uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
		data = data[4:]
	}
	if len(data) > 0 {
		var tail [4]byte
		copy(tail[:], data)
		sum += uint32(tail[0])<<24 | uint32(tail[1])<<16 | uint32(tail[2])<<8 | uint32(tail[3])
	}
	return sum
}
