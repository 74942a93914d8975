package ots

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
)

// WOFF container decode
// https://www.w3.org/TR/WOFF/
//
// A WOFF file is an sfnt with per-table DEFLATE compression and a fixed
// outer header. The decoder inflates each table and reassembles a plain
// sfnt, which then runs through the regular sanitizing path.

const (
	woffHeaderSize      = 44
	woffTableRecordSize = 20
)

func decodeWOFF(ctx *Context, data []byte) ([]byte, error) {
	fail := func(format string, args ...interface{}) error {
		ctx.message(0, format, args...)
		return ParseError{Reason: "bad WOFF container"}
	}

	table := NewBuffer(data)
	var signature, flavor, length uint32
	var numTables, reserved uint16
	var totalSfntSize uint32
	if !table.ReadU32(&signature) || !table.ReadU32(&flavor) || !table.ReadU32(&length) ||
		!table.ReadU16(&numTables) || !table.ReadU16(&reserved) ||
		!table.ReadU32(&totalSfntSize) {
		return nil, fail("failed to read WOFF header")
	}
	if reserved != 0 {
		return nil, fail("WOFF reserved field is %d", reserved)
	}
	if uint64(length) != uint64(len(data)) {
		return nil, fail("WOFF length field %d does not match file size %d", length, len(data))
	}
	if numTables == 0 {
		return nil, fail("WOFF carries no tables")
	}
	// version fields and the metadata/private blocks are irrelevant to
	// reconstruction; metadata bounds are still checked below.
	var metaOffset, metaLength, metaOrigLength, privOffset, privLength uint32
	if !table.Skip(4) || // majorVersion, minorVersion
		!table.ReadU32(&metaOffset) || !table.ReadU32(&metaLength) ||
		!table.ReadU32(&metaOrigLength) ||
		!table.ReadU32(&privOffset) || !table.ReadU32(&privLength) {
		return nil, fail("failed to read WOFF header")
	}
	if metaOffset != 0 && uint64(metaOffset)+uint64(metaLength) > uint64(len(data)) {
		return nil, fail("WOFF metadata block out of bounds")
	}
	if privOffset != 0 && uint64(privOffset)+uint64(privLength) > uint64(len(data)) {
		return nil, fail("WOFF private block out of bounds")
	}

	type woffEntry struct {
		tag          Tag
		origChecksum uint32
		payload      []byte
	}
	entries := make([]woffEntry, 0, numTables)
	var prevTag Tag
	totalOrig := uint64(12 + 16*int(numTables))
	for i := 0; i < int(numTables); i++ {
		var tag Tag
		var offset, compLength, origLength, origChecksum uint32
		if !table.ReadTag(&tag) || !table.ReadU32(&offset) ||
			!table.ReadU32(&compLength) || !table.ReadU32(&origLength) ||
			!table.ReadU32(&origChecksum) {
			return nil, fail("failed to read WOFF table record %d", i)
		}
		if i > 0 && tag <= prevTag {
			return nil, fail("WOFF table directory not strictly sorted at %s", tag)
		}
		prevTag = tag
		if uint64(offset)+uint64(compLength) > uint64(len(data)) {
			return nil, fail("WOFF table %s out of bounds", tag)
		}
		if compLength > origLength {
			return nil, fail("WOFF table %s compressed length %d exceeds original %d",
				tag, compLength, origLength)
		}

		compressed := data[offset : uint64(offset)+uint64(compLength)]
		payload := compressed
		if compLength < origLength {
			r, err := zlib.NewReader(bytes.NewReader(compressed))
			if err != nil {
				return nil, fail("WOFF table %s: %v", tag, err)
			}
			inflated := make([]byte, 0, origLength)
			buf := bytes.NewBuffer(inflated)
			n, err := io.Copy(buf, io.LimitReader(r, int64(origLength)+1))
			r.Close()
			if err != nil || n != int64(origLength) {
				return nil, fail("WOFF table %s inflates to %d bytes, directory says %d",
					tag, n, origLength)
			}
			payload = buf.Bytes()
		}
		entries = append(entries, woffEntry{tag: tag, origChecksum: origChecksum, payload: payload})
		totalOrig += (uint64(origLength) + 3) &^ 3
	}
	if totalSfntSize != 0 && uint64(totalSfntSize) != totalOrig {
		ctx.message(1, "WOFF total sfnt size %d differs from computed %d", totalSfntSize, totalOrig)
	}

	// Reassemble the uncompressed sfnt.
	out := NewExpandingMemoryStream()
	s := NewSerializer(out)
	searchRange, entrySelector, rangeShift := searchParams(len(entries), 16)
	s.WriteU32(flavor)
	s.WriteU16(uint16(len(entries)))
	s.WriteU16(searchRange)
	s.WriteU16(entrySelector)
	s.WriteU16(rangeShift)
	offset := uint32(12 + 16*len(entries))
	for _, entry := range entries {
		s.WriteTag(entry.tag)
		s.WriteU32(entry.origChecksum)
		s.WriteU32(offset)
		s.WriteU32(uint32(len(entry.payload)))
		offset += (uint32(len(entry.payload)) + 3) &^ 3
	}
	for _, entry := range entries {
		s.Write(entry.payload)
		s.PadToAlignment(4)
	}
	return out.Bytes(), nil
}
