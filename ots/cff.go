package ots

// CFF / CFF2 - Compact Font Format
// https://learn.microsoft.com/en-us/typography/opentype/spec/cff
// https://learn.microsoft.com/en-us/typography/opentype/spec/cff2
//
// The outer structure (INDEXes and DICTs) is walked with every offset
// checked against the table bounds, then every charstring is abstractly
// executed (see cff_charstring.go). The validated bytes are carried
// through to the output unchanged.

// cffIndex is the CFF array-of-blobs container. Offsets are stored as
// absolute positions within the enclosing table, already bias-corrected.
type cffIndex struct {
	table   []byte
	offsets []uint32
}

func (x *cffIndex) count() int {
	if x == nil || len(x.offsets) == 0 {
		return 0
	}
	return len(x.offsets) - 1
}

func (x *cffIndex) blob(i int) ([]byte, bool) {
	if x == nil || i < 0 || i+1 >= len(x.offsets) {
		return nil, false
	}
	start, end := x.offsets[i], x.offsets[i+1]
	if start > end || int64(end) > int64(len(x.table)) {
		return nil, false
	}
	return x.table[start:end], true
}

// CFFTable is the parsed CFF or CFF2 table.
type CFFTable struct {
	tableBase
	PostScriptName string
	cff2           bool
	data           []byte
}

func newCFFTable(font *Font, tag Tag) *CFFTable {
	return &CFFTable{
		tableBase: tableBase{font: font, tag: tag},
		cff2:      tag == TagCFF2,
	}
}

// parseIndex reads an INDEX starting at the buffer position. The count
// field is 16-bit in CFF and 32-bit in CFF2.
func (t *CFFTable) parseIndex(table *Buffer) (*cffIndex, error) {
	idx := &cffIndex{table: table.Bytes()}

	var count uint32
	if t.cff2 {
		if !table.ReadU32(&count) {
			return nil, t.Error("INDEX: failed to read count")
		}
	} else {
		var count16 uint16
		if !table.ReadU16(&count16) {
			return nil, t.Error("INDEX: failed to read count")
		}
		count = uint32(count16)
	}
	if count == 0 {
		return idx, nil // empty INDEX has no further fields
	}

	var offSize uint8
	if !table.ReadU8(&offSize) {
		return nil, t.Error("INDEX: failed to read offset size")
	}
	if offSize < 1 || offSize > 4 {
		return nil, t.Error("INDEX: bad offset size %d", offSize)
	}

	idx.offsets = make([]uint32, count+1)
	prev := uint32(0)
	for i := uint32(0); i <= count; i++ {
		var offset uint32
		for j := uint8(0); j < offSize; j++ {
			var b uint8
			if !table.ReadU8(&b) {
				return nil, t.Error("INDEX: failed to read offset %d", i)
			}
			offset = offset<<8 | uint32(b)
		}
		if i == 0 && offset != 1 {
			return nil, t.Error("INDEX: first offset is %d, must be 1", offset)
		}
		if offset < prev {
			return nil, t.Error("INDEX: offsets not monotonic at %d", i)
		}
		prev = offset
		idx.offsets[i] = offset
	}

	// Blob i spans [dataStart + offsets[i] - 1, dataStart + offsets[i+1] - 1).
	dataStart := table.Offset()
	for i := range idx.offsets {
		abs := int64(dataStart) + int64(idx.offsets[i]) - 1
		if abs > int64(table.Len()) {
			return nil, t.Error("INDEX: data exceeds table bounds")
		}
		idx.offsets[i] = uint32(abs)
	}
	if !table.SetOffset(int(idx.offsets[count])) {
		return nil, t.Error("INDEX: data exceeds table bounds")
	}
	return idx, nil
}

// cffDict is the parsed form of a DICT: operator -> operand list.
// Operand values wider than 32 bits and real numbers are stored as 0;
// only integer operands feed offset arithmetic.
type cffDict map[int32][]int32

// parseDict decodes a DICT byte span.
func (t *CFFTable) parseDict(data []byte) (cffDict, error) {
	dict := make(cffDict)
	operands := []int32{}

	sub := NewBuffer(data)
	for sub.Remaining() > 0 {
		var v uint8
		if !sub.ReadU8(&v) {
			return nil, t.Error("DICT: truncated")
		}
		switch {
		case v <= 21: // operator
			op := int32(v)
			if v == 12 {
				var w uint8
				if !sub.ReadU8(&w) {
					return nil, t.Error("DICT: truncated escape operator")
				}
				op = op<<8 | int32(w)
			}
			dict[op] = append([]int32{}, operands...)
			operands = operands[:0]
		case v == 28:
			var hi, lo uint8
			if !sub.ReadU8(&hi) || !sub.ReadU8(&lo) {
				return nil, t.Error("DICT: truncated operand")
			}
			operands = append(operands, int32(int16(uint16(hi)<<8|uint16(lo))))
		case v == 29:
			var n uint32
			if !sub.ReadU32(&n) {
				return nil, t.Error("DICT: truncated operand")
			}
			operands = append(operands, int32(n))
		case v == 30: // real number: nibbles until 0xf terminator
			for {
				var nib uint8
				if !sub.ReadU8(&nib) {
					return nil, t.Error("DICT: truncated real operand")
				}
				if nib&0x0f == 0x0f || nib>>4 == 0x0f {
					break
				}
			}
			operands = append(operands, 0)
		case v >= 32 && v <= 246:
			operands = append(operands, int32(v)-139)
		case v >= 247 && v <= 250:
			var w uint8
			if !sub.ReadU8(&w) {
				return nil, t.Error("DICT: truncated operand")
			}
			operands = append(operands, (int32(v)-247)*256+int32(w)+108)
		case v >= 251 && v <= 254:
			var w uint8
			if !sub.ReadU8(&w) {
				return nil, t.Error("DICT: truncated operand")
			}
			operands = append(operands, -(int32(v)-251)*256-int32(w)-108)
		default:
			return nil, t.Error("DICT: reserved byte %d", v)
		}
		if len(operands) > 48 {
			return nil, t.Error("DICT: operand stack overflow")
		}
	}
	if len(operands) != 0 {
		return nil, t.Error("DICT: trailing operands without operator")
	}
	return dict, nil
}

// DICT operators the parser interprets.
const (
	dictCharset     = 15
	dictEncoding    = 16
	dictCharStrings = 17
	dictPrivate     = 18
	dictSubrs       = 19
	dictVStore      = 24
	dictROS         = 12<<8 + 30
	dictFDArray     = 12<<8 + 36
	dictFDSelect    = 12<<8 + 37
)

// tableOffset extracts a single-operand table offset from a DICT entry
// and bounds-checks it.
func (t *CFFTable) tableOffset(dict cffDict, op int32, length int) (int, bool, error) {
	operands, ok := dict[op]
	if !ok {
		return 0, false, nil
	}
	if len(operands) != 1 {
		return 0, false, t.Error("DICT: operator %d takes one operand, has %d", op, len(operands))
	}
	offset := operands[0]
	if offset <= 0 || int(offset) >= length {
		return 0, false, t.Error("DICT: offset %d for operator %d out of bounds", offset, op)
	}
	return int(offset), true, nil
}

// parsePrivateDict validates a Private DICT span and returns its local
// subr INDEX, if any.
func (t *CFFTable) parsePrivateDict(data []byte, offset, size int) (*cffIndex, error) {
	if size <= 0 || offset <= 0 || offset+size > len(data) {
		return nil, t.Error("bad Private DICT span %d+%d", offset, size)
	}
	private, err := t.parseDict(data[offset : offset+size])
	if err != nil {
		return nil, err
	}

	if operands, ok := private[dictSubrs]; ok {
		if len(operands) != 1 {
			return nil, t.Error("Private DICT: bad Subrs operand count")
		}
		// The Subrs offset is relative to the start of the Private DICT.
		subrsOffset := int64(offset) + int64(operands[0])
		if operands[0] <= 0 || subrsOffset >= int64(len(data)) {
			return nil, t.Error("Private DICT: bad Subrs offset %d", operands[0])
		}
		table := NewBuffer(data)
		table.SetOffset(int(subrsOffset))
		return t.parseIndex(table)
	}
	return nil, nil
}

// parseFDSelect reads the glyph-to-font-dict mapping of a CID font.
func (t *CFFTable) parseFDSelect(data []byte, offset int, numGlyphs uint16,
	numFDs int) (map[uint16]uint8, error) {

	fdSelect := make(map[uint16]uint8)
	sub := NewBuffer(data)
	sub.SetOffset(offset)

	var format uint8
	if !sub.ReadU8(&format) {
		return nil, t.Error("FDSelect: failed to read format")
	}
	switch format {
	case 0:
		for glyph := uint16(0); glyph < numGlyphs; glyph++ {
			var fd uint8
			if !sub.ReadU8(&fd) {
				return nil, t.Error("FDSelect: truncated format 0")
			}
			if int(fd) >= numFDs {
				return nil, t.Error("FDSelect: bad FD index %d for glyph %d", fd, glyph)
			}
			fdSelect[glyph] = fd
		}
	case 3:
		var nRanges uint16
		if !sub.ReadU16(&nRanges) {
			return nil, t.Error("FDSelect: failed to read range count")
		}
		if nRanges == 0 {
			return nil, t.Error("FDSelect: empty range list")
		}
		var first uint16
		if !sub.ReadU16(&first) {
			return nil, t.Error("FDSelect: failed to read first glyph")
		}
		for i := 0; i < int(nRanges); i++ {
			var fd uint8
			var next uint16
			if !sub.ReadU8(&fd) || !sub.ReadU16(&next) {
				return nil, t.Error("FDSelect: truncated range %d", i)
			}
			if int(fd) >= numFDs {
				return nil, t.Error("FDSelect: bad FD index %d in range %d", fd, i)
			}
			if next <= first {
				return nil, t.Error("FDSelect: ranges not increasing at %d", i)
			}
			if next > numGlyphs {
				return nil, t.Error("FDSelect: sentinel %d beyond glyph count", next)
			}
			for glyph := first; glyph < next; glyph++ {
				fdSelect[glyph] = fd
			}
			first = next
		}
		if first != numGlyphs {
			return nil, t.Error("FDSelect: ranges do not cover all glyphs")
		}
	default:
		return nil, t.Error("FDSelect: unknown format %d", format)
	}
	return fdSelect, nil
}

// parseCharset bounds-checks a charset structure.
func (t *CFFTable) parseCharset(data []byte, offset int, numGlyphs uint16) error {
	sub := NewBuffer(data)
	sub.SetOffset(offset)

	var format uint8
	if !sub.ReadU8(&format) {
		return t.Error("charset: failed to read format")
	}
	switch format {
	case 0:
		if !sub.Skip(int(numGlyphs-1) * 2) {
			return t.Error("charset: truncated format 0")
		}
	case 1, 2:
		leftSize := 1
		if format == 2 {
			leftSize = 2
		}
		covered := 1 // .notdef
		for covered < int(numGlyphs) {
			var sid uint16
			if !sub.ReadU16(&sid) {
				return t.Error("charset: truncated range")
			}
			nLeft := 0
			if leftSize == 1 {
				var n uint8
				if !sub.ReadU8(&n) {
					return t.Error("charset: truncated range")
				}
				nLeft = int(n)
			} else {
				var n uint16
				if !sub.ReadU16(&n) {
					return t.Error("charset: truncated range")
				}
				nLeft = int(n)
			}
			covered += nLeft + 1
		}
	default:
		return t.Error("charset: unknown format %d", format)
	}
	return nil
}

func (t *CFFTable) validatePostScriptName(name []byte) error {
	if len(name) == 0 || len(name) > 127 {
		return t.Error("bad font name length %d", len(name))
	}
	for _, c := range name {
		// Printable ASCII, excluding PostScript delimiters.
		if c < '!' || c > '~' {
			return t.Error("bad character %#x in font name", c)
		}
		switch c {
		case '[', ']', '(', ')', '{', '}', '<', '>', '/', '%':
			return t.Error("bad character %q in font name", c)
		}
	}
	return nil
}

func (t *CFFTable) Parse(data []byte) error {
	if t.cff2 {
		if err := t.parseCFF2(data); err != nil {
			return err
		}
	} else {
		if err := t.parseCFF1(data); err != nil {
			return err
		}
	}
	t.data = data
	return nil
}

func (t *CFFTable) parseCFF1(data []byte) error {
	table := NewBuffer(data)

	var major, minor, hdrSize, offSize uint8
	if !table.ReadU8(&major) || !table.ReadU8(&minor) ||
		!table.ReadU8(&hdrSize) || !table.ReadU8(&offSize) {
		return t.Error("failed to read header")
	}
	if major != 1 {
		return t.Error("bad major version %d", major)
	}
	if hdrSize < 4 || int(hdrSize) >= len(data) {
		return t.Error("bad header size %d", hdrSize)
	}
	if offSize < 1 || offSize > 4 {
		return t.Error("bad offset size %d", offSize)
	}
	table.SetOffset(int(hdrSize))

	nameIndex, err := t.parseIndex(table)
	if err != nil {
		return err
	}
	if nameIndex.count() != 1 {
		return t.Error("Name INDEX carries %d names, want 1", nameIndex.count())
	}
	name, ok := nameIndex.blob(0)
	if !ok {
		return t.Error("bad Name INDEX")
	}
	if err := t.validatePostScriptName(name); err != nil {
		return err
	}
	t.PostScriptName = string(name)

	topDictIndex, err := t.parseIndex(table)
	if err != nil {
		return err
	}
	if topDictIndex.count() != nameIndex.count() {
		return t.Error("Top DICT INDEX carries %d entries, want %d",
			topDictIndex.count(), nameIndex.count())
	}

	if _, err := t.parseIndex(table); err != nil { // String INDEX
		return err
	}
	gsubrs, err := t.parseIndex(table)
	if err != nil {
		return err
	}

	topDictData, ok := topDictIndex.blob(0)
	if !ok {
		return t.Error("bad Top DICT INDEX")
	}
	topDict, err := t.parseDict(topDictData)
	if err != nil {
		return err
	}

	return t.parseOutlineData(data, topDict, gsubrs)
}

func (t *CFFTable) parseCFF2(data []byte) error {
	table := NewBuffer(data)

	var major, minor, hdrSize uint8
	var topDictLength uint16
	if !table.ReadU8(&major) || !table.ReadU8(&minor) ||
		!table.ReadU8(&hdrSize) || !table.ReadU16(&topDictLength) {
		return t.Error("failed to read header")
	}
	if major != 2 {
		return t.Error("bad major version %d", major)
	}
	if hdrSize < 5 || int(hdrSize)+int(topDictLength) > len(data) {
		return t.Error("bad header size %d", hdrSize)
	}

	topDict, err := t.parseDict(data[hdrSize : int(hdrSize)+int(topDictLength)])
	if err != nil {
		return err
	}

	table.SetOffset(int(hdrSize) + int(topDictLength))
	gsubrs, err := t.parseIndex(table)
	if err != nil {
		return err
	}

	if offset, present, err := t.tableOffset(topDict, dictVStore, len(data)); err != nil {
		return err
	} else if present {
		// The variation store is preceded by a 16-bit length field.
		vstore := NewBuffer(data)
		vstore.SetOffset(offset)
		var length uint16
		if !vstore.ReadU16(&length) {
			return t.Error("variation store: failed to read length")
		}
		if offset+2+int(length) > len(data) {
			return t.Error("variation store: length %d exceeds table bounds", length)
		}
		if err := parseItemVariationStore(t, t.font, data[offset+2:offset+2+int(length)]); err != nil {
			return err
		}
	}

	return t.parseOutlineData(data, topDict, gsubrs)
}

// parseOutlineData handles everything below the Top DICT: CharStrings,
// Private DICT(s), subrs, and the CID machinery. Shared by CFF and CFF2.
func (t *CFFTable) parseOutlineData(data []byte, topDict cffDict, gsubrs *cffIndex) error {
	maxp := t.font.Maxp()
	if maxp == nil {
		return t.Error("required maxp table missing")
	}
	numGlyphs := maxp.NumGlyphs

	charStringsOffset, present, err := t.tableOffset(topDict, dictCharStrings, len(data))
	if err != nil {
		return err
	}
	if !present {
		return t.Error("Top DICT has no CharStrings entry")
	}
	table := NewBuffer(data)
	table.SetOffset(charStringsOffset)
	charStrings, err := t.parseIndex(table)
	if err != nil {
		return err
	}
	if charStrings.count() != int(numGlyphs) {
		return t.Error("CharStrings INDEX carries %d glyphs, maxp says %d",
			charStrings.count(), numGlyphs)
	}

	_, isCID := topDict[dictROS]

	if !t.cff2 {
		// charset: 0..2 select predefined charsets, anything else is an
		// offset.
		if operands, ok := topDict[dictCharset]; ok {
			if len(operands) != 1 {
				return t.Error("Top DICT: bad charset operand count")
			}
			if operands[0] < 0 || int(operands[0]) >= len(data) {
				return t.Error("Top DICT: bad charset offset %d", operands[0])
			}
			if operands[0] > 2 {
				if err := t.parseCharset(data, int(operands[0]), numGlyphs); err != nil {
					return err
				}
			}
		} else if isCID {
			return t.Error("CID font without charset")
		}
		if operands, ok := topDict[dictEncoding]; ok {
			if len(operands) != 1 || operands[0] < 0 {
				return t.Error("Top DICT: bad Encoding operand")
			}
			if operands[0] > 1 && int(operands[0]) >= len(data) {
				return t.Error("Top DICT: bad Encoding offset %d", operands[0])
			}
		}
	}

	// Plain fonts: one Private DICT hanging off the Top DICT.
	var localSubrs *cffIndex
	if operands, ok := topDict[dictPrivate]; ok {
		if len(operands) != 2 {
			return t.Error("Top DICT: bad Private operand count")
		}
		localSubrs, err = t.parsePrivateDict(data, int(operands[1]), int(operands[0]))
		if err != nil {
			return err
		}
	} else if isCID {
		// CID fonts keep their privates in the FDArray instead.
	} else if !t.cff2 {
		// A Private DICT is formally required; fonts without one exist
		// and work, so only warn.
		t.Warning("font has no Private DICT")
	}

	// CID fonts: FDArray of font DICTs plus the FDSelect mapping.
	var localSubrsPerFD []*cffIndex
	var fdSelect map[uint16]uint8
	fdArrayOffset, haveFDArray, err := t.tableOffset(topDict, dictFDArray, len(data))
	if err != nil {
		return err
	}
	if haveFDArray {
		table.SetOffset(fdArrayOffset)
		fdArray, err := t.parseIndex(table)
		if err != nil {
			return err
		}
		if fdArray.count() == 0 {
			return t.Error("empty FDArray")
		}
		for i := 0; i < fdArray.count(); i++ {
			fontDictData, ok := fdArray.blob(i)
			if !ok {
				return t.Error("bad FDArray entry %d", i)
			}
			fontDict, err := t.parseDict(fontDictData)
			if err != nil {
				return err
			}
			var subrs *cffIndex
			if operands, ok := fontDict[dictPrivate]; ok {
				if len(operands) != 2 {
					return t.Error("Font DICT %d: bad Private operand count", i)
				}
				subrs, err = t.parsePrivateDict(data, int(operands[1]), int(operands[0]))
				if err != nil {
					return err
				}
			}
			localSubrsPerFD = append(localSubrsPerFD, subrs)
		}

		fdSelectOffset, haveFDSelect, err := t.tableOffset(topDict, dictFDSelect, len(data))
		if err != nil {
			return err
		}
		if haveFDSelect {
			fdSelect, err = t.parseFDSelect(data, fdSelectOffset, numGlyphs, len(localSubrsPerFD))
			if err != nil {
				return err
			}
		} else if isCID {
			return t.Error("CID font without FDSelect")
		} else if len(localSubrsPerFD) == 1 {
			// CFF2 allows a single font DICT without FDSelect.
			localSubrs = localSubrsPerFD[0]
			localSubrsPerFD = nil
		}
	} else if isCID {
		return t.Error("CID font without FDArray")
	}

	return t.validateCharStrings(charStrings, gsubrs, fdSelect, localSubrsPerFD, localSubrs)
}

func (t *CFFTable) Serialize(s *Serializer) error {
	if !s.Write(t.data) {
		return t.Error("failed to write table")
	}
	return nil
}
