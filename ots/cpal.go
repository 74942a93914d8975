package ots

// CPAL - Color Palette Table
// https://learn.microsoft.com/en-us/typography/opentype/spec/cpal

// CPALTable is the parsed color palette table. NumPaletteEntries bounds
// the palette indices COLR may use.
type CPALTable struct {
	tableBase
	NumPaletteEntries uint16
	data              []byte
}

func newCPALTable(font *Font) *CPALTable {
	return &CPALTable{tableBase: tableBase{font: font, tag: TagCPAL}}
}

func (t *CPALTable) parsePaletteTypes(data []byte, numPalettes uint16) error {
	sub := NewBuffer(data)
	const reservedTypeBits = ^uint32(0x0003) // light & dark background bits
	for i := 0; i < int(numPalettes); i++ {
		var paletteType uint32
		if !sub.ReadU32(&paletteType) {
			return t.Error("failed to read palette type %d", i)
		}
		if paletteType&reservedTypeBits != 0 {
			t.Warning("reserved palette type flags %#08x for palette %d", paletteType, i)
		}
	}
	return nil
}

func (t *CPALTable) parseLabels(data []byte, count uint16, what string) error {
	sub := NewBuffer(data)
	name := t.font.Name()
	for i := 0; i < int(count); i++ {
		var nameID uint16
		if !sub.ReadU16(&nameID) {
			return t.Error("failed to read %s label %d", what, i)
		}
		if nameID != 0xffff && name != nil && !name.IsValidNameID(nameID) {
			t.Warning("%s %d label ID %d missing from name table", what, i, nameID)
		}
	}
	return nil
}

func (t *CPALTable) Parse(data []byte) error {
	table := NewBuffer(data)

	var version, numPaletteEntries, numPalettes, numColorRecords uint16
	var colorRecordsOffset uint32
	if !table.ReadU16(&version) || !table.ReadU16(&numPaletteEntries) ||
		!table.ReadU16(&numPalettes) || !table.ReadU16(&numColorRecords) ||
		!table.ReadU32(&colorRecordsOffset) {
		return t.Error("failed to read table header")
	}
	if version > 1 {
		return t.Error("unknown table version %d", version)
	}
	if numPaletteEntries == 0 || numPalettes == 0 || numColorRecords == 0 {
		return t.Error("empty palette table is not valid")
	}

	for i := 0; i < int(numPalettes); i++ {
		var colorRecordIndex uint16
		if !table.ReadU16(&colorRecordIndex) {
			return t.Error("failed to read color record index %d", i)
		}
		if uint32(colorRecordIndex)+uint32(numPaletteEntries) > uint32(numColorRecords) {
			return t.Error("palette %d exceeds color records", i)
		}
	}

	headerSize := uint32(12 + int(numPalettes)*2)
	var typesOffset, labelsOffset, entryLabelsOffset uint32
	if version == 1 {
		if !table.ReadU32(&typesOffset) || !table.ReadU32(&labelsOffset) ||
			!table.ReadU32(&entryLabelsOffset) {
			return t.Error("failed to read version 1 header")
		}
		headerSize += 12
	}

	if colorRecordsOffset < headerSize || colorRecordsOffset >= uint32(len(data)) {
		return t.Error("bad color records offset %d", colorRecordsOffset)
	}
	if uint64(colorRecordsOffset)+uint64(numColorRecords)*4 > uint64(len(data)) {
		return t.Error("color records exceed table bounds")
	}

	if typesOffset != 0 {
		if typesOffset < headerSize || typesOffset >= uint32(len(data)) {
			return t.Error("bad palette types offset %d", typesOffset)
		}
		if err := t.parsePaletteTypes(data[typesOffset:], numPalettes); err != nil {
			return err
		}
	}
	if labelsOffset != 0 {
		if labelsOffset < headerSize || labelsOffset >= uint32(len(data)) {
			return t.Error("bad palette labels offset %d", labelsOffset)
		}
		if err := t.parseLabels(data[labelsOffset:], numPalettes, "palette"); err != nil {
			return err
		}
	}
	if entryLabelsOffset != 0 {
		if entryLabelsOffset < headerSize || entryLabelsOffset >= uint32(len(data)) {
			return t.Error("bad palette entry labels offset %d", entryLabelsOffset)
		}
		if err := t.parseLabels(data[entryLabelsOffset:], numPaletteEntries, "palette entry"); err != nil {
			return err
		}
	}

	t.NumPaletteEntries = numPaletteEntries
	t.data = data
	return nil
}

func (t *CPALTable) Serialize(s *Serializer) error {
	if !s.Write(t.data) {
		return t.Error("failed to write table")
	}
	return nil
}
