package ots

// EBSC - Embedded Bitmap Scaling Table
// https://learn.microsoft.com/en-us/typography/opentype/spec/ebsc

// EbscTable is the parsed embedded bitmap scaling table.
type EbscTable struct {
	tableBase
	data []byte
}

func newEbscTable(font *Font) *EbscTable {
	return &EbscTable{tableBase: tableBase{font: font, tag: TagEBSC}}
}

func (t *EbscTable) Parse(data []byte) error {
	table := NewBuffer(data)

	var versionMajor, versionMinor uint16
	var numSizes uint32
	if !table.ReadU16(&versionMajor) || !table.ReadU16(&versionMinor) ||
		!table.ReadU32(&numSizes) {
		return t.Error("failed to read table header")
	}
	if versionMajor != 2 || versionMinor != 0 {
		return t.Error("bad version %d.%d", versionMajor, versionMinor)
	}
	// The scale records take arbitrary values; only the length matters.
	if numSizes > uint32(table.Remaining())/28 {
		return t.Error("bad bitmap scale record count %d", numSizes)
	}
	if !table.Skip(int(numSizes) * 28) {
		return t.Error("bitmap scale records exceed table bounds")
	}

	t.data = data
	return nil
}

func (t *EbscTable) Serialize(s *Serializer) error {
	if !s.Write(t.data) {
		return t.Error("failed to write table")
	}
	return nil
}
