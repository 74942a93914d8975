package ots

// hdmx - Horizontal Device Metrics
// https://learn.microsoft.com/en-us/typography/opentype/spec/hdmx
//
// Like gasp, this is an optimization-only table: an unneeded table, a
// bad version or an empty record list makes it go away instead of
// rejecting the font. A wrong record size, unsorted records or
// truncated data are errors.

type hdmxRecord struct {
	ppem     uint8
	maxWidth uint8
	widths   []byte
}

// HdmxTable is the parsed horizontal device metrics.
type HdmxTable struct {
	tableBase
	recordSize uint32
	records    []hdmxRecord
	dropped    bool
}

func newHdmxTable(font *Font) *HdmxTable {
	return &HdmxTable{tableBase: tableBase{font: font, tag: TagHdmx}}
}

func (t *HdmxTable) Parse(data []byte) error {
	table := NewBuffer(data)

	head := t.font.Head()
	maxp := t.font.Maxp()
	if head == nil || maxp == nil {
		return t.Error("head or maxp table missing as needed by hdmx")
	}
	// The table only applies when head.flags bit 2 (instructions may
	// depend on point size) or bit 4 (instructions may alter advance
	// widths) is set.
	if head.Flags&0x14 == 0 {
		t.Warning("head flags bits 2 and 4 are clear, dropping table")
		t.dropped = true
		return nil
	}

	var version uint16
	var numRecords int16
	var recordSize int32
	if !table.ReadU16(&version) || !table.ReadS16(&numRecords) ||
		!table.ReadS32(&recordSize) {
		return t.Error("failed to read table header")
	}
	if version != 0 {
		t.Warning("bad table version %d, dropping table", version)
		t.dropped = true
		return nil
	}
	if numRecords <= 0 {
		t.Warning("no device records, dropping table")
		t.dropped = true
		return nil
	}

	numGlyphs := uint32(maxp.NumGlyphs)
	wantSize := (2 + numGlyphs + 3) &^ 3 // record padded to 32 bits
	if uint32(recordSize) != wantSize {
		return t.Error("bad record size %d, want %d", recordSize, wantSize)
	}
	t.recordSize = wantSize

	prevPPEM := int32(-1)
	for i := 0; i < int(numRecords); i++ {
		var rec hdmxRecord
		if !table.ReadU8(&rec.ppem) || !table.ReadU8(&rec.maxWidth) {
			return t.Error("failed to read device record %d", i)
		}
		if int32(rec.ppem) <= prevPPEM {
			return t.Error("device records not sorted by ppem")
		}
		prevPPEM = int32(rec.ppem)
		widths, ok := table.ReadBytes(int(numGlyphs))
		if !ok {
			return t.Error("failed to read widths of record %d", i)
		}
		rec.widths = widths
		if !table.Skip(int(wantSize - 2 - numGlyphs)) {
			return t.Error("failed to skip padding of record %d", i)
		}
		t.records = append(t.records, rec)
	}

	return nil
}

func (t *HdmxTable) ShouldSerialize() bool {
	return !t.dropped && t.font.Glyf() != nil
}

func (t *HdmxTable) Serialize(s *Serializer) error {
	if !s.WriteU16(0) || !s.WriteS16(int16(len(t.records))) ||
		!s.WriteS32(int32(t.recordSize)) {
		return t.Error("failed to write table header")
	}
	for i, rec := range t.records {
		if !s.WriteU8(rec.ppem) || !s.WriteU8(rec.maxWidth) || !s.Write(rec.widths) {
			return t.Error("failed to write device record %d", i)
		}
		if !s.Pad(int(t.recordSize) - 2 - len(rec.widths)) {
			return t.Error("failed to pad device record %d", i)
		}
	}
	return nil
}
