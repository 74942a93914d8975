package ots

// DSIG - Digital Signature
// https://learn.microsoft.com/en-us/typography/opentype/spec/dsig
//
// Rewriting the font invalidates any signature over it, so the content
// of the incoming table is irrelevant beyond a header check. An empty
// signature table is emitted instead, which keeps Windows treating the
// font as an OpenType font.

// DsigTable replaces the digital signature with an empty one.
type DsigTable struct {
	tableBase
}

func newDsigTable(font *Font) *DsigTable {
	return &DsigTable{tableBase: tableBase{font: font, tag: TagDSIG}}
}

func (t *DsigTable) Parse(data []byte) error {
	table := NewBuffer(data)
	var version uint32
	var numSignatures, flags uint16
	if !table.ReadU32(&version) || !table.ReadU16(&numSignatures) ||
		!table.ReadU16(&flags) {
		return t.Error("failed to read table header")
	}
	if version != 1 {
		return t.Error("bad table version %d", version)
	}
	return nil
}

func (t *DsigTable) Serialize(s *Serializer) error {
	if !s.WriteU32(1) || !s.WriteU16(0) || !s.WriteU16(0) {
		return t.Error("failed to write table")
	}
	return nil
}
