package ots

// hhea/vhea - Horizontal/Vertical Header
// hmtx/vmtx - Horizontal/Vertical Metrics
// https://learn.microsoft.com/en-us/typography/opentype/spec/hhea
//
// The horizontal and vertical variants share their entire layout, so one
// pair of table types covers all four tags.

// MetricsHeaderTable is a parsed hhea or vhea table.
type MetricsHeaderTable struct {
	tableBase
	Version         uint32
	Ascent          int16
	Descent         int16
	LineGap         int16
	AdvanceMax      uint16
	MinSideBearing1 int16
	MinSideBearing2 int16
	MaxExtent       int16
	CaretSlopeRise  int16
	CaretSlopeRun   int16
	CaretOffset     int16
	NumMetrics      uint16
}

func newMetricsHeaderTable(font *Font, tag Tag) *MetricsHeaderTable {
	return &MetricsHeaderTable{tableBase: tableBase{font: font, tag: tag}}
}

func (t *MetricsHeaderTable) Parse(data []byte) error {
	table := NewBuffer(data)

	if !table.ReadU32(&t.Version) {
		return t.Error("failed to read table version")
	}
	if t.tag == TagHhea {
		if t.Version>>16 != 1 {
			return t.Error("bad table version %#x", t.Version)
		}
	} else {
		// vhea 1.0 and 1.1 are both current.
		if t.Version != 0x00010000 && t.Version != 0x00011000 {
			return t.Error("bad table version %#x", t.Version)
		}
	}

	if !table.ReadS16(&t.Ascent) || !table.ReadS16(&t.Descent) ||
		!table.ReadS16(&t.LineGap) || !table.ReadU16(&t.AdvanceMax) ||
		!table.ReadS16(&t.MinSideBearing1) || !table.ReadS16(&t.MinSideBearing2) ||
		!table.ReadS16(&t.MaxExtent) || !table.ReadS16(&t.CaretSlopeRise) ||
		!table.ReadS16(&t.CaretSlopeRun) || !table.ReadS16(&t.CaretOffset) {
		return t.Error("failed to read metrics header")
	}

	if t.tag == TagHhea {
		if t.Ascent < 0 {
			t.Warning("bad ascent %d, normalizing to 0", t.Ascent)
			t.Ascent = 0
		}
		if t.Descent > 0 {
			t.Warning("bad descent %d, normalizing to 0", t.Descent)
			t.Descent = 0
		}
	}

	// Four reserved int16 fields, then the data format.
	for i := 0; i < 4; i++ {
		var reserved int16
		if !table.ReadS16(&reserved) {
			return t.Error("failed to read reserved field %d", i)
		}
		if reserved != 0 {
			t.Warning("reserved field %d is %d, clearing", i, reserved)
		}
	}

	var dataFormat int16
	if !table.ReadS16(&dataFormat) || dataFormat != 0 {
		return t.Error("bad metric data format %d", dataFormat)
	}

	if !table.ReadU16(&t.NumMetrics) {
		return t.Error("failed to read number of metrics")
	}
	if t.NumMetrics == 0 {
		return t.Error("number of metrics is zero")
	}

	return nil
}

func (t *MetricsHeaderTable) Serialize(s *Serializer) error {
	if !s.WriteU32(t.Version) ||
		!s.WriteS16(t.Ascent) || !s.WriteS16(t.Descent) ||
		!s.WriteS16(t.LineGap) || !s.WriteU16(t.AdvanceMax) ||
		!s.WriteS16(t.MinSideBearing1) || !s.WriteS16(t.MinSideBearing2) ||
		!s.WriteS16(t.MaxExtent) || !s.WriteS16(t.CaretSlopeRise) ||
		!s.WriteS16(t.CaretSlopeRun) || !s.WriteS16(t.CaretOffset) ||
		!s.WriteS16(0) || !s.WriteS16(0) || !s.WriteS16(0) || !s.WriteS16(0) ||
		!s.WriteS16(0) ||
		!s.WriteU16(t.NumMetrics) {
		return t.Error("failed to write table")
	}
	return nil
}

// MetricsTable is a parsed hmtx or vmtx table.
type MetricsTable struct {
	tableBase
	headerTag Tag
	Advances  []uint16
	Bearings  []int16 // leading side bearings, one per glyph
}

func newMetricsTable(font *Font, tag Tag) *MetricsTable {
	header := TagHhea
	if tag == TagVmtx {
		header = TagVhea
	}
	return &MetricsTable{tableBase: tableBase{font: font, tag: tag}, headerTag: header}
}

func (t *MetricsTable) header() *MetricsHeaderTable {
	h, _ := t.font.Table(t.headerTag).(*MetricsHeaderTable)
	return h
}

func (t *MetricsTable) Parse(data []byte) error {
	table := NewBuffer(data)

	header := t.header()
	maxp := t.font.Maxp()
	if header == nil || maxp == nil {
		return t.Error("%s or maxp table missing as needed by %s", t.headerTag, t.tag)
	}

	numMetrics := int(header.NumMetrics)
	numGlyphs := int(maxp.NumGlyphs)
	if numMetrics > numGlyphs {
		return t.Error("bad number of metrics %d > number of glyphs %d", numMetrics, numGlyphs)
	}

	t.Advances = make([]uint16, numMetrics)
	t.Bearings = make([]int16, numGlyphs)
	for i := 0; i < numMetrics; i++ {
		var advance uint16
		var bearing int16
		if !table.ReadU16(&advance) || !table.ReadS16(&bearing) {
			return t.Error("failed to read metric %d", i)
		}
		if advance > header.AdvanceMax {
			t.Warning("advance %d of glyph %d exceeds header maximum %d, clamping",
				advance, i, header.AdvanceMax)
			advance = header.AdvanceMax
		}
		t.Advances[i] = advance
		t.Bearings[i] = bearing
	}
	for i := numMetrics; i < numGlyphs; i++ {
		var bearing int16
		if !table.ReadS16(&bearing) {
			return t.Error("failed to read side bearing for glyph %d", i)
		}
		t.Bearings[i] = bearing
	}

	return nil
}

func (t *MetricsTable) ShouldSerialize() bool {
	// vmtx serializes only while its header table is kept.
	if t.tag == TagVmtx {
		return t.font.Vhea() != nil
	}
	return true
}

func (t *MetricsTable) Serialize(s *Serializer) error {
	for i, advance := range t.Advances {
		if !s.WriteU16(advance) || !s.WriteS16(t.Bearings[i]) {
			return t.Error("failed to write metric %d", i)
		}
	}
	for i := len(t.Advances); i < len(t.Bearings); i++ {
		if !s.WriteS16(t.Bearings[i]) {
			return t.Error("failed to write side bearing for glyph %d", i)
		}
	}
	return nil
}
