package ots

// fvar - Font Variations
// https://learn.microsoft.com/en-us/typography/opentype/spec/fvar

// FvarTable is the parsed font variations header. The axis count is the
// anchor every other variation structure is validated against.
type FvarTable struct {
	tableBase
	AxisCount uint16
	data      []byte
}

func newFvarTable(font *Font) *FvarTable {
	return &FvarTable{tableBase: tableBase{font: font, tag: TagFvar}}
}

func (t *FvarTable) Parse(data []byte) error {
	table := NewBuffer(data)

	var major, minor, axesOffset, reserved uint16
	var axisCount, axisSize, instanceCount, instanceSize uint16
	if !table.ReadU16(&major) || !table.ReadU16(&minor) ||
		!table.ReadU16(&axesOffset) || !table.ReadU16(&reserved) ||
		!table.ReadU16(&axisCount) || !table.ReadU16(&axisSize) ||
		!table.ReadU16(&instanceCount) || !table.ReadU16(&instanceSize) {
		return t.Error("failed to read table header")
	}
	if major != 1 {
		return t.Error("bad table version %d.%d", major, minor)
	}
	if axisCount == 0 {
		return t.Error("variable font with zero axes")
	}
	if axisSize != 20 {
		return t.Error("bad axis record size %d", axisSize)
	}
	if instanceSize != axisCount*4+4 && instanceSize != axisCount*4+6 {
		return t.Error("bad instance record size %d", instanceSize)
	}
	if int(axesOffset) < 16 || int(axesOffset) >= len(data) {
		return t.Error("bad axes array offset %d", axesOffset)
	}

	axes := NewBuffer(data[axesOffset:])
	for i := 0; i < int(axisCount); i++ {
		var axisTag Tag
		var minValue, defaultValue, maxValue int32
		var flags, nameID uint16
		if !axes.ReadTag(&axisTag) ||
			!axes.ReadS32(&minValue) || !axes.ReadS32(&defaultValue) ||
			!axes.ReadS32(&maxValue) ||
			!axes.ReadU16(&flags) || !axes.ReadU16(&nameID) {
			return t.Error("failed to read axis record %d", i)
		}
		if minValue > defaultValue || defaultValue > maxValue {
			return t.Error("axis %s range %d/%d/%d out of order",
				axisTag, minValue, defaultValue, maxValue)
		}
	}
	for i := 0; i < int(instanceCount); i++ {
		var nameID, flags uint16
		if !axes.ReadU16(&nameID) || !axes.ReadU16(&flags) {
			return t.Error("failed to read instance record %d", i)
		}
		if !axes.Skip(int(instanceSize) - 4) {
			return t.Error("instance record %d exceeds table bounds", i)
		}
	}

	t.AxisCount = axisCount
	t.data = data
	return nil
}

func (t *FvarTable) ShouldSerialize() bool {
	return !t.font.dropVariations
}

func (t *FvarTable) Serialize(s *Serializer) error {
	if !s.Write(t.data) {
		return t.Error("failed to write table")
	}
	return nil
}
