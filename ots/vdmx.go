package ots

// VDMX - Vertical Device Metrics
// https://learn.microsoft.com/en-us/typography/opentype/spec/vdmx

// VdmxTable validates the vertical device metrics and keeps the
// validated bytes. A bad version, ratio range, character set or yMin/yMax
// drops the table; truncated data, bad group offsets and unsorted vTable
// records are errors.
type VdmxTable struct {
	tableBase
	data    []byte
	dropped bool
}

func newVdmxTable(font *Font) *VdmxTable {
	return &VdmxTable{tableBase: tableBase{font: font, tag: TagVDMX}}
}

func (t *VdmxTable) Parse(data []byte) error {
	table := NewBuffer(data)

	var version, numRecs, numRatios uint16
	if !table.ReadU16(&version) || !table.ReadU16(&numRecs) || !table.ReadU16(&numRatios) {
		return t.Error("failed to read table header")
	}
	if version > 1 {
		t.Warning("bad table version %d, dropping table", version)
		t.dropped = true
		return nil
	}

	for i := 0; i < int(numRatios); i++ {
		var charSet, xRatio, yStart, yEnd uint8
		if !table.ReadU8(&charSet) || !table.ReadU8(&xRatio) ||
			!table.ReadU8(&yStart) || !table.ReadU8(&yEnd) {
			return t.Error("failed to read ratio record %d", i)
		}
		if yStart > yEnd {
			t.Warning("bad ratio range in record %d, dropping table", i)
			t.dropped = true
			return nil
		}
		if version == 0 && charSet > 1 {
			t.Warning("bad character set %d in record %d, dropping table", charSet, i)
			t.dropped = true
			return nil
		}
	}

	groupOffsetsEnd := 6 + int(numRatios)*4 + int(numRatios)*2
	for i := 0; i < int(numRatios); i++ {
		var offset uint16
		if !table.ReadU16(&offset) {
			return t.Error("failed to read group offset %d", i)
		}
		if int(offset) < groupOffsetsEnd || int(offset) >= len(data) {
			return t.Error("bad group offset %d in record %d", offset, i)
		}

		group := NewBuffer(data[offset:])
		var recs uint16
		var startSize, endSize uint8
		if !group.ReadU16(&recs) || !group.ReadU8(&startSize) || !group.ReadU8(&endSize) {
			return t.Error("failed to read group %d header", i)
		}
		prevHeight := int32(-1)
		for j := 0; j < int(recs); j++ {
			var yPelHeight uint16
			var yMax, yMin int16
			if !group.ReadU16(&yPelHeight) || !group.ReadS16(&yMax) || !group.ReadS16(&yMin) {
				return t.Error("failed to read vTable record %d in group %d", j, i)
			}
			if int32(yPelHeight) <= prevHeight {
				return t.Error("vTable records not sorted in group %d", i)
			}
			prevHeight = int32(yPelHeight)
			if yMin > yMax {
				t.Warning("bad yMin/yMax in group %d, dropping table", i)
				t.dropped = true
				return nil
			}
		}
	}

	t.data = data
	return nil
}

func (t *VdmxTable) ShouldSerialize() bool {
	return !t.dropped && t.font.Glyf() != nil
}

func (t *VdmxTable) Serialize(s *Serializer) error {
	if !s.Write(t.data) {
		return t.Error("failed to write table")
	}
	return nil
}
