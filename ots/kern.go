package ots

// kern - Kerning
// https://learn.microsoft.com/en-us/typography/opentype/spec/kern
//
// Only the Windows flavor (version 0) with format 0 subtables is kept;
// Apple extensions and other formats are dropped subtable by subtable.
// A kern table left without any usable subtable is dropped entirely.

type kernSubtable struct {
	coverage uint16
	data     []byte // format 0 payload starting at nPairs
}

// KernTable is the parsed kerning table.
type KernTable struct {
	tableBase
	subtables []kernSubtable
}

func newKernTable(font *Font) *KernTable {
	return &KernTable{tableBase: tableBase{font: font, tag: TagKern}}
}

func (t *KernTable) Parse(data []byte) error {
	table := NewBuffer(data)

	var version, numTables uint16
	if !table.ReadU16(&version) || !table.ReadU16(&numTables) {
		return t.Error("failed to read table header")
	}
	if version != 0 {
		t.Warning("unsupported table version %d, dropping table", version)
		return nil
	}

	for i := 0; i < int(numTables); i++ {
		subStart := table.Offset()
		var subVersion, length, coverage uint16
		if !table.ReadU16(&subVersion) || !table.ReadU16(&length) ||
			!table.ReadU16(&coverage) {
			return t.Error("failed to read subtable %d header", i)
		}
		if int(length) < 6 || subStart+int(length) > table.Len() {
			return t.Error("bad subtable %d length %d", i, length)
		}
		format := coverage >> 8
		if subVersion != 0 || format != 0 {
			t.Warning("dropping kern subtable %d with format %d", i, format)
			if !table.SetOffset(subStart + int(length)) {
				return t.Error("bad subtable %d length %d", i, length)
			}
			continue
		}

		var nPairs, searchRange, entrySelector, rangeShift uint16
		if !table.ReadU16(&nPairs) || !table.ReadU16(&searchRange) ||
			!table.ReadU16(&entrySelector) || !table.ReadU16(&rangeShift) {
			return t.Error("failed to read subtable %d pair header", i)
		}
		if int(length) < 14+int(nPairs)*6 {
			return t.Error("subtable %d pairs exceed subtable length", i)
		}

		wantSearchRange := uint16(6)
		wantEntrySelector := uint16(0)
		for uint32(wantSearchRange)*2 <= uint32(nPairs)*6 {
			wantSearchRange *= 2
			wantEntrySelector++
		}
		if searchRange != wantSearchRange ||
			entrySelector != wantEntrySelector ||
			rangeShift != nPairs*6-wantSearchRange {
			return t.Error("bad search fields in subtable %d", i)
		}

		prevKey := int64(-1)
		for j := 0; j < int(nPairs); j++ {
			var left, right uint16
			var value int16
			if !table.ReadU16(&left) || !table.ReadU16(&right) || !table.ReadS16(&value) {
				return t.Error("failed to read kerning pair %d in subtable %d", j, i)
			}
			key := int64(left)<<16 | int64(right)
			if key <= prevKey {
				return t.Error("kerning pairs out of order in subtable %d", i)
			}
			prevKey = key
		}

		payloadStart := subStart + 6
		t.subtables = append(t.subtables, kernSubtable{
			coverage: coverage,
			data:     data[payloadStart : subStart+int(length)],
		})

		if !table.SetOffset(subStart + int(length)) {
			return t.Error("bad subtable %d length %d", i, length)
		}
	}

	if len(t.subtables) == 0 {
		t.Warning("no usable kerning subtables, dropping table")
	}
	return nil
}

func (t *KernTable) ShouldSerialize() bool {
	return len(t.subtables) > 0
}

func (t *KernTable) Serialize(s *Serializer) error {
	if !s.WriteU16(0) || !s.WriteU16(uint16(len(t.subtables))) {
		return t.Error("failed to write table header")
	}
	for i, sub := range t.subtables {
		if !s.WriteU16(0) || // subtable version
			!s.WriteU16(uint16(6+len(sub.data))) ||
			!s.WriteU16(sub.coverage) ||
			!s.Write(sub.data) {
			return t.Error("failed to write subtable %d", i)
		}
	}
	return nil
}
