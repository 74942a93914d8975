package ots

import (
	"github.com/emirpasic/gods/sets/hashset"
)

// COLR - Color Table
// https://learn.microsoft.com/en-us/typography/opentype/spec/colr
//
// The v1 paint graph is a directed graph of offset-linked records that
// fonts may share between glyph descriptions and that may form cycles.
// Traversal keeps one visited set per record family, keyed on the
// absolute offset of the record within the table: each physical record
// is checked at most once, which both bounds the work and breaks cycles.

const f2dot14One = 0x4000

const colrCompositeModeMax = 27 // HSL luminosity, the last defined mode

// colrState is the per-traversal state of the paint graph walk.
type colrState struct {
	t *COLRTable

	colorLines    *hashset.Set
	varColorLines *hashset.Set
	affines       *hashset.Set
	varAffines    *hashset.Set
	paints        *hashset.Set
	clipBoxes     *hashset.Set

	baseGlyphIDs map[uint16]bool

	numGlyphs         uint16 // from maxp
	numPaletteEntries uint16 // from CPAL
	numLayers         uint32 // from the layer list
}

// addr converts a record span back to its absolute offset within the
// COLR table, the identity the visited sets are keyed on.
func (state *colrState) addr(data []byte) int {
	return state.t.length - len(data)
}

// COLRTable is the parsed color table.
type COLRTable struct {
	tableBase
	length int
	data   []byte
}

func newCOLRTable(font *Font) *COLRTable {
	return &COLRTable{tableBase: tableBase{font: font, tag: TagCOLR}}
}

func (t *COLRTable) parseColorLine(data []byte, state *colrState, variable bool) error {
	set := state.colorLines
	if variable {
		set = state.varColorLines
	}
	if set.Contains(state.addr(data)) {
		return nil
	}
	set.Add(state.addr(data))

	sub := NewBuffer(data)
	var extend uint8
	var numColorStops uint16
	if !sub.ReadU8(&extend) || !sub.ReadU16(&numColorStops) {
		return t.Error("failed to read color line")
	}
	if extend > 2 { // pad, repeat, reflect
		t.Warning("unknown color-line extend mode %d", extend)
	}

	for i := 0; i < int(numColorStops); i++ {
		var stopOffset, alpha int16
		var paletteIndex uint16
		var varIndexBase uint32
		if !sub.ReadS16(&stopOffset) || !sub.ReadU16(&paletteIndex) ||
			!sub.ReadS16(&alpha) ||
			(variable && !sub.ReadU32(&varIndexBase)) {
			return t.Error("failed to read color stop %d", i)
		}
		if paletteIndex >= state.numPaletteEntries && paletteIndex != 0xffff {
			return t.Error("bad palette index %d in color stop", paletteIndex)
		}
		if alpha < 0 || alpha > f2dot14One {
			t.Warning("alpha value outside valid range 0.0 - 1.0")
		}
	}
	return nil
}

func (t *COLRTable) parseAffine(data []byte, state *colrState, variable bool) error {
	set := state.affines
	if variable {
		set = state.varAffines
	}
	if set.Contains(state.addr(data)) {
		return nil
	}
	set.Add(state.addr(data))

	sub := NewBuffer(data)
	var xx, yx, xy, yy, dx, dy int32
	var varIndexBase uint32
	if !sub.ReadS32(&xx) || !sub.ReadS32(&yx) || !sub.ReadS32(&xy) ||
		!sub.ReadS32(&yy) || !sub.ReadS32(&dx) || !sub.ReadS32(&dy) ||
		(variable && !sub.ReadU32(&varIndexBase)) {
		return t.Error("failed to read affine transformation")
	}
	return nil
}

// childColorLine descends into a color line referenced through a 24-bit
// offset.
func (t *COLRTable) childColorLine(data []byte, offset uint32, state *colrState, variable bool) error {
	if int(offset) >= len(data) {
		return t.Error("color line offset out of bounds")
	}
	return t.parseColorLine(data[offset:], state, variable)
}

// childPaint descends into a paint referenced through a 24-bit offset.
func (t *COLRTable) childPaint(data []byte, offset uint32, state *colrState) error {
	if int(offset) >= len(data) {
		return t.Error("paint offset out of bounds")
	}
	return t.parsePaint(data[offset:], state)
}

func (t *COLRTable) parsePaint(data []byte, state *colrState) error {
	if state.paints.Contains(state.addr(data)) {
		return nil
	}
	state.paints.Add(state.addr(data))

	sub := NewBuffer(data)
	var format uint8
	if !sub.ReadU8(&format) {
		return t.Error("failed to read paint record format")
	}

	switch format {
	case 1: // PaintColrLayers
		var numLayers uint8
		var firstLayerIndex uint32
		if !sub.ReadU8(&numLayers) || !sub.ReadU32(&firstLayerIndex) {
			return t.Error("failed to read layered paint record")
		}
		if uint64(firstLayerIndex)+uint64(numLayers) > uint64(state.numLayers) {
			return t.Error("layered paint exceeds bounds of layer list")
		}
		return nil

	case 2, 3: // PaintSolid, PaintVarSolid
		variable := format == 3
		var paletteIndex uint16
		var alpha int16
		if !sub.ReadU16(&paletteIndex) || !sub.ReadS16(&alpha) {
			return t.Error("failed to read solid paint")
		}
		if paletteIndex >= state.numPaletteEntries && paletteIndex != 0xffff {
			return t.Error("bad palette index %d in solid paint", paletteIndex)
		}
		if alpha < 0 || alpha > f2dot14One {
			t.Warning("alpha value outside valid range 0.0 - 1.0")
		}
		if variable {
			var varIndexBase uint32
			if !sub.ReadU32(&varIndexBase) {
				return t.Error("failed to read variable solid paint")
			}
		}
		return nil

	case 4, 5: // Paint[Var]LinearGradient
		variable := format == 5
		var colorLine uint32
		var x0, y0, x1, y1, x2, y2 int16
		var varIndexBase uint32
		if !sub.ReadU24(&colorLine) ||
			!sub.ReadS16(&x0) || !sub.ReadS16(&y0) ||
			!sub.ReadS16(&x1) || !sub.ReadS16(&y1) ||
			!sub.ReadS16(&x2) || !sub.ReadS16(&y2) ||
			(variable && !sub.ReadU32(&varIndexBase)) {
			return t.Error("failed to read linear gradient paint")
		}
		return t.childColorLine(data, colorLine, state, variable)

	case 6, 7: // Paint[Var]RadialGradient
		variable := format == 7
		var colorLine uint32
		var x0, y0, x1, y1 int16
		var radius0, radius1 uint16
		var varIndexBase uint32
		if !sub.ReadU24(&colorLine) ||
			!sub.ReadS16(&x0) || !sub.ReadS16(&y0) || !sub.ReadU16(&radius0) ||
			!sub.ReadS16(&x1) || !sub.ReadS16(&y1) || !sub.ReadU16(&radius1) ||
			(variable && !sub.ReadU32(&varIndexBase)) {
			return t.Error("failed to read radial gradient paint")
		}
		return t.childColorLine(data, colorLine, state, variable)

	case 8, 9: // Paint[Var]SweepGradient
		variable := format == 9
		var colorLine uint32
		var centerX, centerY, startAngle, endAngle int16
		var varIndexBase uint32
		if !sub.ReadU24(&colorLine) ||
			!sub.ReadS16(&centerX) || !sub.ReadS16(&centerY) ||
			!sub.ReadS16(&startAngle) || !sub.ReadS16(&endAngle) ||
			(variable && !sub.ReadU32(&varIndexBase)) {
			return t.Error("failed to read sweep gradient paint")
		}
		return t.childColorLine(data, colorLine, state, variable)

	case 10: // PaintGlyph
		var paintOffset uint32
		var glyphID uint16
		if !sub.ReadU24(&paintOffset) || !sub.ReadU16(&glyphID) {
			return t.Error("failed to read glyph paint")
		}
		if glyphID >= state.numGlyphs {
			return t.Error("glyph id %d out of bounds in glyph paint", glyphID)
		}
		return t.childPaint(data, paintOffset, state)

	case 11: // PaintColrGlyph
		var glyphID uint16
		if !sub.ReadU16(&glyphID) {
			return t.Error("failed to read color glyph paint")
		}
		// The referenced base glyph's own graph is traversed from the
		// base glyph list; membership is all that needs checking here.
		if !state.baseGlyphIDs[glyphID] {
			return t.Error("glyph id %d not in base glyph list", glyphID)
		}
		return nil

	case 12, 13: // Paint[Var]Transform
		variable := format == 13
		var paintOffset, transformOffset uint32
		if !sub.ReadU24(&paintOffset) || !sub.ReadU24(&transformOffset) {
			return t.Error("failed to read transform paint")
		}
		if int(transformOffset) >= len(data) {
			return t.Error("transform offset out of bounds")
		}
		if err := t.childPaint(data, paintOffset, state); err != nil {
			return err
		}
		return t.parseAffine(data[transformOffset:], state, variable)

	case 14, 15: // Paint[Var]Translate
		variable := format == 15
		var paintOffset uint32
		var dx, dy int16
		var varIndexBase uint32
		if !sub.ReadU24(&paintOffset) || !sub.ReadS16(&dx) || !sub.ReadS16(&dy) ||
			(variable && !sub.ReadU32(&varIndexBase)) {
			return t.Error("failed to read translate paint")
		}
		return t.childPaint(data, paintOffset, state)

	case 16, 17, 18, 19, 20, 21, 22, 23: // Paint[Var]Scale[AroundCenter][Uniform]
		variable := format&1 != 0
		aroundCenter := format == 18 || format == 19 || format == 22 || format == 23
		uniform := format >= 20
		var paintOffset uint32
		var scaleX, scaleY, centerX, centerY int16
		var varIndexBase uint32
		if !sub.ReadU24(&paintOffset) || !sub.ReadS16(&scaleX) ||
			(!uniform && !sub.ReadS16(&scaleY)) ||
			(aroundCenter && (!sub.ReadS16(&centerX) || !sub.ReadS16(&centerY))) ||
			(variable && !sub.ReadU32(&varIndexBase)) {
			return t.Error("failed to read scale paint")
		}
		return t.childPaint(data, paintOffset, state)

	case 24, 25, 26, 27: // Paint[Var]Rotate[AroundCenter]
		variable := format == 25 || format == 27
		aroundCenter := format >= 26
		var paintOffset uint32
		var angle, centerX, centerY int16
		var varIndexBase uint32
		if !sub.ReadU24(&paintOffset) || !sub.ReadS16(&angle) ||
			(aroundCenter && (!sub.ReadS16(&centerX) || !sub.ReadS16(&centerY))) ||
			(variable && !sub.ReadU32(&varIndexBase)) {
			return t.Error("failed to read rotate paint")
		}
		return t.childPaint(data, paintOffset, state)

	case 28, 29, 30, 31: // Paint[Var]Skew[AroundCenter]
		variable := format == 29 || format == 31
		aroundCenter := format >= 30
		var paintOffset uint32
		var xSkewAngle, ySkewAngle, centerX, centerY int16
		var varIndexBase uint32
		if !sub.ReadU24(&paintOffset) ||
			!sub.ReadS16(&xSkewAngle) || !sub.ReadS16(&ySkewAngle) ||
			(aroundCenter && (!sub.ReadS16(&centerX) || !sub.ReadS16(&centerY))) ||
			(variable && !sub.ReadU32(&varIndexBase)) {
			return t.Error("failed to read skew paint")
		}
		return t.childPaint(data, paintOffset, state)

	case 32: // PaintComposite
		var sourcePaint, backdropPaint uint32
		var compositeMode uint8
		if !sub.ReadU24(&sourcePaint) || !sub.ReadU8(&compositeMode) ||
			!sub.ReadU24(&backdropPaint) {
			return t.Error("failed to read composite paint")
		}
		if compositeMode > colrCompositeModeMax {
			t.Warning("unknown composite mode %d", compositeMode)
		}
		if err := t.childPaint(data, sourcePaint, state); err != nil {
			return err
		}
		return t.childPaint(data, backdropPaint, state)

	default:
		// Clients ignore unknown paint formats; carry them through but
		// do not descend.
		t.Warning("unknown paint format %d", format)
	}
	return nil
}

func (t *COLRTable) parseBaseGlyphRecords(data []byte,
	numBaseGlyphRecords, numLayerRecords uint32, state *colrState) error {

	sub := NewBuffer(data)
	prevGlyphID := int32(-1)
	for i := uint32(0); i < numBaseGlyphRecords; i++ {
		var glyphID, firstLayerIndex, numLayers uint16
		if !sub.ReadU16(&glyphID) || !sub.ReadU16(&firstLayerIndex) ||
			!sub.ReadU16(&numLayers) {
			return t.Error("failed to read base glyph record %d", i)
		}
		if glyphID >= state.numGlyphs {
			return t.Error("base glyph record glyph id %d out of bounds", glyphID)
		}
		if int32(glyphID) <= prevGlyphID {
			return t.Error("base glyph record for glyph id %d out of order", glyphID)
		}
		if uint32(firstLayerIndex)+uint32(numLayers) > numLayerRecords {
			return t.Error("layer index out of bounds in base glyph record %d", i)
		}
		prevGlyphID = int32(glyphID)
	}
	return nil
}

func (t *COLRTable) parseLayerRecords(data []byte, numLayerRecords uint32,
	state *colrState) error {

	sub := NewBuffer(data)
	for i := uint32(0); i < numLayerRecords; i++ {
		var glyphID, paletteIndex uint16
		if !sub.ReadU16(&glyphID) || !sub.ReadU16(&paletteIndex) {
			return t.Error("failed to read layer record %d", i)
		}
		if glyphID >= state.numGlyphs {
			return t.Error("layer record glyph id %d out of bounds", glyphID)
		}
		if paletteIndex >= state.numPaletteEntries && paletteIndex != 0xffff {
			return t.Error("bad palette index %d in layer record %d", paletteIndex, i)
		}
	}
	return nil
}

func (t *COLRTable) parseBaseGlyphList(data []byte, state *colrState) error {
	sub := NewBuffer(data)
	var numRecords uint32
	if !sub.ReadU32(&numRecords) {
		return t.Error("failed to read base glyph list")
	}

	// Two passes: the first collects every declared glyph ID so that
	// color-glyph paints may reference peers regardless of order, the
	// second descends the paint graphs.
	saved := sub.Offset()
	prevGlyphID := int32(-1)
	for i := uint32(0); i < numRecords; i++ {
		var glyphID uint16
		var paintOffset uint32
		if !sub.ReadU16(&glyphID) || !sub.ReadU32(&paintOffset) {
			return t.Error("failed to read base glyph list record %d", i)
		}
		if glyphID >= state.numGlyphs {
			return t.Error("base glyph list glyph id %d out of bounds", glyphID)
		}
		if int32(glyphID) <= prevGlyphID {
			return t.Error("base glyph list record for glyph id %d out of order", glyphID)
		}
		if paintOffset == 0 || int64(paintOffset) >= int64(len(data)) {
			return t.Error("bad paint offset for base glyph id %d", glyphID)
		}
		state.baseGlyphIDs[glyphID] = true
		prevGlyphID = int32(glyphID)
	}

	sub.SetOffset(saved)
	for i := uint32(0); i < numRecords; i++ {
		var glyphID uint16
		var paintOffset uint32
		if !sub.ReadU16(&glyphID) || !sub.ReadU32(&paintOffset) {
			return t.Error("failed to read base glyph list record %d", i)
		}
		if err := t.parsePaint(data[paintOffset:], state); err != nil {
			return err
		}
	}
	return nil
}

// parseLayerList runs twice: first to learn the layer count, which the
// base glyph list needs, then to descend the layer paints.
func (t *COLRTable) parseLayerList(data []byte, state *colrState, descend bool) error {
	sub := NewBuffer(data)
	if !sub.ReadU32(&state.numLayers) {
		return t.Error("failed to read layer list")
	}
	if !descend {
		return nil
	}
	for i := uint32(0); i < state.numLayers; i++ {
		var paintOffset uint32
		if !sub.ReadU32(&paintOffset) {
			return t.Error("failed to read layer list entry %d", i)
		}
		if paintOffset == 0 || int64(paintOffset) >= int64(len(data)) {
			return t.Error("bad paint offset in layer list entry %d", i)
		}
		if err := t.parsePaint(data[paintOffset:], state); err != nil {
			return err
		}
	}
	return nil
}

func (t *COLRTable) parseClipBox(data []byte, state *colrState) error {
	if state.clipBoxes.Contains(state.addr(data)) {
		return nil
	}

	sub := NewBuffer(data)
	var format uint8
	var xMin, yMin, xMax, yMax int16
	if !sub.ReadU8(&format) || !sub.ReadS16(&xMin) || !sub.ReadS16(&yMin) ||
		!sub.ReadS16(&xMax) || !sub.ReadS16(&yMax) {
		return t.Error("failed to read clip box")
	}
	switch format {
	case 1:
	case 2:
		var varIndexBase uint32
		if !sub.ReadU32(&varIndexBase) {
			return t.Error("failed to read variable clip box")
		}
	default:
		return t.Error("invalid clip box format %d", format)
	}
	if xMin > xMax || yMin > yMax {
		return t.Error("invalid clip box bounds")
	}

	state.clipBoxes.Add(state.addr(data))
	return nil
}

func (t *COLRTable) parseClipList(data []byte, state *colrState) error {
	sub := NewBuffer(data)
	var format uint8
	var numClipRecords uint32
	if !sub.ReadU8(&format) || !sub.ReadU32(&numClipRecords) {
		return t.Error("failed to read clip list")
	}
	if format != 1 {
		return t.Error("unknown clip list format %d", format)
	}

	prevEndGlyphID := int32(-1)
	for i := uint32(0); i < numClipRecords; i++ {
		var startGlyphID, endGlyphID uint16
		var clipBoxOffset uint32
		if !sub.ReadU16(&startGlyphID) || !sub.ReadU16(&endGlyphID) ||
			!sub.ReadU24(&clipBoxOffset) {
			return t.Error("failed to read clip record %d", i)
		}
		if int32(startGlyphID) <= prevEndGlyphID || endGlyphID < startGlyphID ||
			endGlyphID >= state.numGlyphs {
			return t.Error("bad or out-of-order glyph range %d-%d in clip list",
				startGlyphID, endGlyphID)
		}
		if int64(clipBoxOffset) >= int64(len(data)) {
			return t.Error("clip box offset out of bounds for glyphs %d-%d",
				startGlyphID, endGlyphID)
		}
		if err := t.parseClipBox(data[clipBoxOffset:], state); err != nil {
			return err
		}
		prevEndGlyphID = int32(endGlyphID)
	}
	return nil
}

func (t *COLRTable) Parse(data []byte) error {
	t.length = len(data)
	table := NewBuffer(data)

	// Version 0 header fields.
	var version, numBaseGlyphRecords uint16
	var baseGlyphRecordsOffset, layerRecordsOffset uint32
	var numLayerRecords uint16
	if !table.ReadU16(&version) || !table.ReadU16(&numBaseGlyphRecords) ||
		!table.ReadU32(&baseGlyphRecordsOffset) || !table.ReadU32(&layerRecordsOffset) ||
		!table.ReadU16(&numLayerRecords) {
		return t.Error("incomplete table")
	}
	if version > 1 {
		return t.Error("bad version %d", version)
	}

	headerSize := uint32(14)
	var baseGlyphListOffset, layerListOffset, clipListOffset uint32
	var varIdxMapOffset, varStoreOffset uint32
	if version == 1 {
		if !table.ReadU32(&baseGlyphListOffset) || !table.ReadU32(&layerListOffset) ||
			!table.ReadU32(&clipListOffset) || !table.ReadU32(&varIdxMapOffset) ||
			!table.ReadU32(&varStoreOffset) {
			return t.Error("incomplete version 1 table")
		}
		headerSize = 34
	}

	// Cross-table bounds come from maxp and CPAL.
	maxp := t.font.Maxp()
	if maxp == nil {
		return t.Error("required maxp table missing")
	}
	cpal := t.font.CPAL()
	if cpal == nil {
		return t.Error("required CPAL table missing")
	}
	state := &colrState{
		t:                 t,
		colorLines:        hashset.New(),
		varColorLines:     hashset.New(),
		affines:           hashset.New(),
		varAffines:        hashset.New(),
		paints:            hashset.New(),
		clipBoxes:         hashset.New(),
		baseGlyphIDs:      make(map[uint16]bool),
		numGlyphs:         maxp.NumGlyphs,
		numPaletteEntries: cpal.NumPaletteEntries,
	}

	checkOffset := func(name string, offset uint32) error {
		if offset < headerSize || offset >= uint32(len(data)) {
			return t.Error("bad %s offset in table header", name)
		}
		return nil
	}

	if numBaseGlyphRecords > 0 {
		if err := checkOffset("base glyph records", baseGlyphRecordsOffset); err != nil {
			return err
		}
		if err := t.parseBaseGlyphRecords(data[baseGlyphRecordsOffset:],
			uint32(numBaseGlyphRecords), uint32(numLayerRecords), state); err != nil {
			return err
		}
	}
	if numLayerRecords > 0 {
		if err := checkOffset("layer records", layerRecordsOffset); err != nil {
			return err
		}
		if err := t.parseLayerRecords(data[layerRecordsOffset:],
			uint32(numLayerRecords), state); err != nil {
			return err
		}
	}

	// The base glyph list needs the layer count, so read it first.
	if layerListOffset != 0 {
		if err := checkOffset("layer list", layerListOffset); err != nil {
			return err
		}
		if err := t.parseLayerList(data[layerListOffset:], state, false); err != nil {
			return err
		}
	}
	if baseGlyphListOffset != 0 {
		if err := checkOffset("base glyph list", baseGlyphListOffset); err != nil {
			return err
		}
		if err := t.parseBaseGlyphList(data[baseGlyphListOffset:], state); err != nil {
			return err
		}
	}
	if layerListOffset != 0 {
		if err := t.parseLayerList(data[layerListOffset:], state, true); err != nil {
			return err
		}
	}
	if clipListOffset != 0 {
		if err := checkOffset("clip list", clipListOffset); err != nil {
			return err
		}
		if err := t.parseClipList(data[clipListOffset:], state); err != nil {
			return err
		}
	}
	if varIdxMapOffset != 0 {
		if err := checkOffset("delta set index map", varIdxMapOffset); err != nil {
			return err
		}
		if err := parseDeltaSetIndexMap(t, data[varIdxMapOffset:]); err != nil {
			return err
		}
	}
	if varStoreOffset != 0 {
		if err := checkOffset("item variation store", varStoreOffset); err != nil {
			return err
		}
		if err := parseItemVariationStore(t, t.font, data[varStoreOffset:]); err != nil {
			return err
		}
	}

	t.data = data
	return nil
}

func (t *COLRTable) Serialize(s *Serializer) error {
	if !s.Write(t.data) {
		return t.Error("failed to write table")
	}
	return nil
}
