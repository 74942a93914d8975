package ots

// maxp - Maximum Profile
// https://learn.microsoft.com/en-us/typography/opentype/spec/maxp

// MaxpTable is the parsed maximum profile. Version 1.0 carries the
// TrueType-specific limits; of these, MaxSizeOfInstructions bounds the
// per-glyph bytecode the glyf parser will accept.
type MaxpTable struct {
	tableBase
	Version1  bool
	NumGlyphs uint16

	MaxPoints             uint16
	MaxContours           uint16
	MaxCompositePoints    uint16
	MaxCompositeContours  uint16
	MaxZones              uint16
	MaxTwilightPoints     uint16
	MaxStorage            uint16
	MaxFunctionDefs       uint16
	MaxInstructionDefs    uint16
	MaxStackElements      uint16
	MaxSizeOfInstructions uint16
	MaxComponentElements  uint16
	MaxComponentDepth     uint16
}

func newMaxpTable(font *Font) *MaxpTable {
	return &MaxpTable{tableBase: tableBase{font: font, tag: TagMaxp}}
}

func (t *MaxpTable) Parse(data []byte) error {
	table := NewBuffer(data)

	var version uint32
	if !table.ReadU32(&version) {
		return t.Error("failed to read table version")
	}
	if version != 0x00005000 && version != 0x00010000 {
		return t.Error("bad table version %#x", version)
	}
	if !table.ReadU16(&t.NumGlyphs) {
		return t.Error("failed to read number of glyphs")
	}
	if t.NumGlyphs == 0 {
		return t.Error("font has zero glyphs")
	}

	if version == 0x00005000 {
		return nil
	}
	t.Version1 = true

	if !table.ReadU16(&t.MaxPoints) ||
		!table.ReadU16(&t.MaxContours) ||
		!table.ReadU16(&t.MaxCompositePoints) ||
		!table.ReadU16(&t.MaxCompositeContours) ||
		!table.ReadU16(&t.MaxZones) ||
		!table.ReadU16(&t.MaxTwilightPoints) ||
		!table.ReadU16(&t.MaxStorage) ||
		!table.ReadU16(&t.MaxFunctionDefs) ||
		!table.ReadU16(&t.MaxInstructionDefs) ||
		!table.ReadU16(&t.MaxStackElements) ||
		!table.ReadU16(&t.MaxSizeOfInstructions) ||
		!table.ReadU16(&t.MaxComponentElements) ||
		!table.ReadU16(&t.MaxComponentDepth) {
		return t.Error("failed to read version 1.0 fields")
	}

	// maxZones must be 1 or 2; fonts shipping 0 are common enough that
	// the value is normalized instead of rejected.
	if t.MaxZones == 0 {
		t.Warning("bad max zones 0, normalizing to 1")
		t.MaxZones = 1
	} else if t.MaxZones > 2 {
		return t.Error("bad max zones %d", t.MaxZones)
	}

	return nil
}

func (t *MaxpTable) Serialize(s *Serializer) error {
	version := uint32(0x00005000)
	if t.Version1 {
		version = 0x00010000
	}
	if !s.WriteU32(version) || !s.WriteU16(t.NumGlyphs) {
		return t.Error("failed to write table")
	}
	if !t.Version1 {
		return nil
	}
	if !s.WriteU16(t.MaxPoints) ||
		!s.WriteU16(t.MaxContours) ||
		!s.WriteU16(t.MaxCompositePoints) ||
		!s.WriteU16(t.MaxCompositeContours) ||
		!s.WriteU16(t.MaxZones) ||
		!s.WriteU16(t.MaxTwilightPoints) ||
		!s.WriteU16(t.MaxStorage) ||
		!s.WriteU16(t.MaxFunctionDefs) ||
		!s.WriteU16(t.MaxInstructionDefs) ||
		!s.WriteU16(t.MaxStackElements) ||
		!s.WriteU16(t.MaxSizeOfInstructions) ||
		!s.WriteU16(t.MaxComponentElements) ||
		!s.WriteU16(t.MaxComponentDepth) {
		return t.Error("failed to write version 1.0 fields")
	}
	return nil
}
