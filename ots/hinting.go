package ots

// cvt - Control Value Table
// fpgm - Font Program
// prep - Control Value Program
//
// The three hinting support tables share one shape: an opaque run of
// bytes with a sanity cap on the length. They are meaningful only for
// TrueType outlines and are dropped from CFF fonts.

// Almost all tables of this kind found in the wild are a few KiB.
const maxHintingTableLength = 128 * 1024

// HintingTable is a parsed cvt, fpgm or prep table.
type HintingTable struct {
	tableBase
	data []byte
}

func newHintingTable(font *Font, tag Tag) *HintingTable {
	return &HintingTable{tableBase: tableBase{font: font, tag: tag}}
}

func (t *HintingTable) Parse(data []byte) error {
	if len(data) >= maxHintingTableLength {
		return t.Error("table length %d exceeds %d", len(data), maxHintingTableLength)
	}
	if t.tag == TagCvt && len(data)%2 != 0 {
		return t.Error("uneven cvt length %d", len(data))
	}
	t.data = data
	return nil
}

func (t *HintingTable) ShouldSerialize() bool {
	return t.font.Glyf() != nil // not for CFF fonts
}

func (t *HintingTable) Serialize(s *Serializer) error {
	if !s.Write(t.data) {
		return t.Error("failed to write table")
	}
	return nil
}
