package ots

// BASE - Baseline Table
// https://learn.microsoft.com/en-us/typography/opentype/spec/base

// BaseTable is the parsed baseline table.
type BaseTable struct {
	tableBase
	data []byte
}

func newBaseTable(font *Font) *BaseTable {
	return &BaseTable{tableBase: tableBase{font: font, tag: TagBASE}}
}

func (t *BaseTable) parseBaseCoord(data []byte) error {
	sub := NewBuffer(data)
	var format uint16
	var coordinate int16
	if !sub.ReadU16(&format) || !sub.ReadS16(&coordinate) {
		return t.Error("base coordinate: failed to read header")
	}
	switch format {
	case 1:
		return nil
	case 2:
		var glyph, point uint16
		if !sub.ReadU16(&glyph) || !sub.ReadU16(&point) {
			return t.Error("base coordinate: truncated format 2")
		}
		if glyph >= t.font.NumGlyphs() {
			return t.Error("base coordinate: bad glyph id %d", glyph)
		}
		return nil
	case 3:
		var deviceOffset uint16
		if !sub.ReadU16(&deviceOffset) {
			return t.Error("base coordinate: truncated format 3")
		}
		return parseOptionalDevice(t, data, deviceOffset)
	}
	return t.Error("base coordinate: unknown format %d", format)
}

func (t *BaseTable) parseMinMax(data []byte) error {
	sub := NewBuffer(data)
	var minCoordOffset, maxCoordOffset, featMinMaxCount uint16
	if !sub.ReadU16(&minCoordOffset) || !sub.ReadU16(&maxCoordOffset) ||
		!sub.ReadU16(&featMinMaxCount) {
		return t.Error("min/max: failed to read header")
	}
	checkCoord := func(offset uint16) error {
		if offset == 0 {
			return nil
		}
		if int(offset) >= len(data) {
			return t.Error("min/max: bad coordinate offset %d", offset)
		}
		return t.parseBaseCoord(data[offset:])
	}
	if err := checkCoord(minCoordOffset); err != nil {
		return err
	}
	if err := checkCoord(maxCoordOffset); err != nil {
		return err
	}
	var lastTag Tag
	for i := 0; i < int(featMinMaxCount); i++ {
		var featureTag Tag
		var featMinOffset, featMaxOffset uint16
		if !sub.ReadTag(&featureTag) || !sub.ReadU16(&featMinOffset) ||
			!sub.ReadU16(&featMaxOffset) {
			return t.Error("min/max: failed to read feature record %d", i)
		}
		if lastTag != 0 && lastTag >= featureTag {
			return t.Error("min/max: feature records not sorted")
		}
		lastTag = featureTag
		if err := checkCoord(featMinOffset); err != nil {
			return err
		}
		if err := checkCoord(featMaxOffset); err != nil {
			return err
		}
	}
	return nil
}

func (t *BaseTable) parseBaseValues(data []byte) error {
	sub := NewBuffer(data)
	var defaultIndex, coordCount uint16
	if !sub.ReadU16(&defaultIndex) || !sub.ReadU16(&coordCount) {
		return t.Error("base values: failed to read header")
	}
	if coordCount > 0 && defaultIndex >= coordCount {
		return t.Error("base values: bad default baseline index %d", defaultIndex)
	}
	for i := 0; i < int(coordCount); i++ {
		var offset uint16
		if !sub.ReadU16(&offset) {
			return t.Error("base values: failed to read coordinate offset %d", i)
		}
		if int(offset) < 4+int(coordCount)*2 || int(offset) >= len(data) {
			return t.Error("base values: bad coordinate offset %d", offset)
		}
		if err := t.parseBaseCoord(data[offset:]); err != nil {
			return err
		}
	}
	return nil
}

func (t *BaseTable) parseBaseScript(data []byte) error {
	sub := NewBuffer(data)
	var baseValuesOffset, defaultMinMaxOffset, langSysCount uint16
	if !sub.ReadU16(&baseValuesOffset) || !sub.ReadU16(&defaultMinMaxOffset) ||
		!sub.ReadU16(&langSysCount) {
		return t.Error("base script: failed to read header")
	}
	if baseValuesOffset != 0 {
		if int(baseValuesOffset) >= len(data) {
			return t.Error("base script: bad base values offset %d", baseValuesOffset)
		}
		if err := t.parseBaseValues(data[baseValuesOffset:]); err != nil {
			return err
		}
	}
	if defaultMinMaxOffset != 0 {
		if int(defaultMinMaxOffset) >= len(data) {
			return t.Error("base script: bad min/max offset %d", defaultMinMaxOffset)
		}
		if err := t.parseMinMax(data[defaultMinMaxOffset:]); err != nil {
			return err
		}
	}
	var lastTag Tag
	for i := 0; i < int(langSysCount); i++ {
		var langSysTag Tag
		var minMaxOffset uint16
		if !sub.ReadTag(&langSysTag) || !sub.ReadU16(&minMaxOffset) {
			return t.Error("base script: failed to read language system record %d", i)
		}
		if lastTag != 0 && lastTag >= langSysTag {
			return t.Error("base script: language system records not sorted")
		}
		lastTag = langSysTag
		if int(minMaxOffset) >= len(data) {
			return t.Error("base script: bad min/max offset %d in record %d", minMaxOffset, i)
		}
		if minMaxOffset != 0 {
			if err := t.parseMinMax(data[minMaxOffset:]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *BaseTable) parseAxis(data []byte) error {
	sub := NewBuffer(data)
	var baseTagListOffset, baseScriptListOffset uint16
	if !sub.ReadU16(&baseTagListOffset) || !sub.ReadU16(&baseScriptListOffset) {
		return t.Error("axis: failed to read header")
	}

	var baselineTagCount uint16
	if baseTagListOffset != 0 {
		if int(baseTagListOffset) >= len(data) {
			return t.Error("axis: bad baseline tag list offset %d", baseTagListOffset)
		}
		tags := NewBuffer(data[baseTagListOffset:])
		if !tags.ReadU16(&baselineTagCount) {
			return t.Error("axis: failed to read baseline tag count")
		}
		var lastTag Tag
		for i := 0; i < int(baselineTagCount); i++ {
			var baselineTag Tag
			if !tags.ReadTag(&baselineTag) {
				return t.Error("axis: failed to read baseline tag %d", i)
			}
			if lastTag != 0 && lastTag >= baselineTag {
				return t.Error("axis: baseline tags not sorted")
			}
			lastTag = baselineTag
		}
	}

	if baseScriptListOffset != 0 {
		if int(baseScriptListOffset) >= len(data) {
			return t.Error("axis: bad base script list offset %d", baseScriptListOffset)
		}
		scripts := data[baseScriptListOffset:]
		scriptsBuf := NewBuffer(scripts)
		var scriptCount uint16
		if !scriptsBuf.ReadU16(&scriptCount) {
			return t.Error("axis: failed to read base script count")
		}
		var lastTag Tag
		for i := 0; i < int(scriptCount); i++ {
			var scriptTag Tag
			var offset uint16
			if !scriptsBuf.ReadTag(&scriptTag) || !scriptsBuf.ReadU16(&offset) {
				return t.Error("axis: failed to read base script record %d", i)
			}
			if lastTag != 0 && lastTag >= scriptTag {
				return t.Error("axis: base script records not sorted")
			}
			lastTag = scriptTag
			if int(offset) < 2+int(scriptCount)*6 || int(offset) >= len(scripts) {
				return t.Error("axis: bad base script offset %d", offset)
			}
			if err := t.parseBaseScript(scripts[offset:]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *BaseTable) Parse(data []byte) error {
	table := NewBuffer(data)

	var major, minor uint16
	if !table.ReadU16(&major) || !table.ReadU16(&minor) {
		return t.Error("failed to read table version")
	}
	if major != 1 || minor > 1 {
		return t.Error("bad table version %d.%d", major, minor)
	}

	var horizAxisOffset, vertAxisOffset uint16
	if !table.ReadU16(&horizAxisOffset) || !table.ReadU16(&vertAxisOffset) {
		return t.Error("failed to read axis offsets")
	}
	var itemVarStoreOffset uint32
	if minor == 1 {
		if !table.ReadU32(&itemVarStoreOffset) {
			return t.Error("failed to read item variation store offset")
		}
	}
	headerEnd := table.Offset()

	for _, axis := range []struct {
		name   string
		offset uint16
	}{{"horizontal", horizAxisOffset}, {"vertical", vertAxisOffset}} {
		if axis.offset == 0 {
			continue
		}
		if int(axis.offset) < headerEnd || int(axis.offset) >= len(data) {
			return t.Error("bad %s axis offset %d", axis.name, axis.offset)
		}
		if err := t.parseAxis(data[axis.offset:]); err != nil {
			return err
		}
	}
	if itemVarStoreOffset != 0 {
		if int(itemVarStoreOffset) < headerEnd || int(itemVarStoreOffset) >= len(data) {
			return t.Error("bad item variation store offset %d", itemVarStoreOffset)
		}
		if err := parseItemVariationStore(t, t.font, data[itemVarStoreOffset:]); err != nil {
			return err
		}
	}

	t.data = data
	return nil
}

func (t *BaseTable) Serialize(s *Serializer) error {
	if !s.Write(t.data) {
		return t.Error("failed to write table")
	}
	return nil
}
