package ots

// LTSH - Linear Threshold
// https://learn.microsoft.com/en-us/typography/opentype/spec/ltsh

// LtshTable is the parsed linear threshold table.
type LtshTable struct {
	tableBase
	yPels   []byte
	dropped bool
}

func newLtshTable(font *Font) *LtshTable {
	return &LtshTable{tableBase: tableBase{font: font, tag: TagLTSH}}
}

func (t *LtshTable) Parse(data []byte) error {
	table := NewBuffer(data)

	maxp := t.font.Maxp()
	if maxp == nil {
		return t.Error("maxp table missing as needed by LTSH")
	}

	var version, numGlyphs uint16
	if !table.ReadU16(&version) || !table.ReadU16(&numGlyphs) {
		return t.Error("failed to read table header")
	}
	if version != 0 {
		t.Warning("bad table version %d, dropping table", version)
		t.dropped = true
		return nil
	}
	if numGlyphs != maxp.NumGlyphs {
		return t.Error("glyph count %d does not match maxp %d", numGlyphs, maxp.NumGlyphs)
	}

	pels, ok := table.ReadBytes(int(numGlyphs))
	if !ok {
		return t.Error("failed to read thresholds")
	}
	t.yPels = pels
	return nil
}

func (t *LtshTable) ShouldSerialize() bool {
	return !t.dropped && t.font.Glyf() != nil
}

func (t *LtshTable) Serialize(s *Serializer) error {
	if !s.WriteU16(0) || !s.WriteU16(uint16(len(t.yPels))) || !s.Write(t.yPels) {
		return t.Error("failed to write table")
	}
	return nil
}
