package ots

// gasp - Grid-fitting and Scan-conversion Procedure
// https://learn.microsoft.com/en-us/typography/opentype/spec/gasp
//
// A gasp table with a bad version, unsorted ranges, reserved behavior
// bits or a last range short of 0xFFFF is dropped rather than rejected:
// rasterizers fall back to sensible defaults without it. A truncated
// table is still an error.

type gaspRange struct {
	maxPPEM  uint16
	behavior uint16
}

// GaspTable is the parsed grid-fitting table.
type GaspTable struct {
	tableBase
	version uint16
	ranges  []gaspRange
	dropped bool
}

func newGaspTable(font *Font) *GaspTable {
	return &GaspTable{tableBase: tableBase{font: font, tag: TagGasp}}
}

func (t *GaspTable) Parse(data []byte) error {
	table := NewBuffer(data)

	var numRanges uint16
	if !table.ReadU16(&t.version) || !table.ReadU16(&numRanges) {
		return t.Error("failed to read table header")
	}
	if t.version > 1 {
		t.Warning("bad table version %d, dropping table", t.version)
		t.dropped = true
		return nil
	}

	behaviorMask := uint16(0x0003)
	if t.version == 1 {
		behaviorMask = 0x000f
	}

	prevPPEM := int32(-1)
	for i := 0; i < int(numRanges); i++ {
		var r gaspRange
		if !table.ReadU16(&r.maxPPEM) || !table.ReadU16(&r.behavior) {
			return t.Error("failed to read range %d", i)
		}
		if int32(r.maxPPEM) <= prevPPEM {
			t.Warning("ranges not sorted, dropping table")
			t.dropped = true
			return nil
		}
		prevPPEM = int32(r.maxPPEM)
		if r.behavior&^behaviorMask != 0 {
			t.Warning("reserved behavior bits %#x in range %d, dropping table", r.behavior, i)
			t.dropped = true
			return nil
		}
		t.ranges = append(t.ranges, r)
	}
	if len(t.ranges) == 0 || t.ranges[len(t.ranges)-1].maxPPEM != 0xffff {
		t.Warning("last range must cover up to 0xFFFF, dropping table")
		t.dropped = true
	}
	return nil
}

func (t *GaspTable) ShouldSerialize() bool {
	return !t.dropped
}

func (t *GaspTable) Serialize(s *Serializer) error {
	if !s.WriteU16(t.version) || !s.WriteU16(uint16(len(t.ranges))) {
		return t.Error("failed to write table header")
	}
	for i, r := range t.ranges {
		if !s.WriteU16(r.maxPPEM) || !s.WriteU16(r.behavior) {
			return t.Error("failed to write range %d", i)
		}
	}
	return nil
}
