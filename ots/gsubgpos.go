package ots

import "math/bits"

// GSUB - Glyph Substitution Table
// GPOS - Glyph Positioning Table
// https://learn.microsoft.com/en-us/typography/opentype/spec/gsub
// https://learn.microsoft.com/en-us/typography/opentype/spec/gpos
//
// Both tables share the script/feature/lookup list plumbing and the
// (chain) context subtable formats; they differ only in the per-type
// lookup subtable parsers. The validated bytes are carried through to
// the output unchanged.

// LayoutTable is a parsed GSUB or GPOS table.
type LayoutTable struct {
	tableBase
	parsers []lookupSubtableParser
	data    []byte

	// NumLookups is the size of the lookup list; JSTF validates its
	// lookup indices against it.
	NumLookups uint16
}

func newGSUBTable(font *Font) *LayoutTable {
	return &LayoutTable{
		tableBase: tableBase{font: font, tag: TagGSUB},
		parsers:   gsubSubtableParsers,
	}
}

func newGPOSTable(font *Font) *LayoutTable {
	return &LayoutTable{
		tableBase: tableBase{font: font, tag: TagGPOS},
		parsers:   gposSubtableParsers,
	}
}

func (t *LayoutTable) Parse(data []byte) error {
	table := NewBuffer(data)

	var major, minor uint16
	if !table.ReadU16(&major) || !table.ReadU16(&minor) {
		return t.Error("failed to read table version")
	}
	if major != 1 || minor > 1 {
		return t.Error("bad table version %d.%d", major, minor)
	}

	var scriptListOffset, featureListOffset, lookupListOffset uint16
	if !table.ReadU16(&scriptListOffset) || !table.ReadU16(&featureListOffset) ||
		!table.ReadU16(&lookupListOffset) {
		return t.Error("failed to read table header")
	}
	var featureVariationsOffset uint32
	if minor == 1 {
		if !table.ReadU32(&featureVariationsOffset) {
			return t.Error("failed to read feature variations offset")
		}
	}
	headerEnd := table.Offset()

	checkOffset := func(name string, offset int) error {
		if offset < headerEnd || offset >= len(data) {
			return t.Error("bad %s offset %d", name, offset)
		}
		return nil
	}

	// The lookup list anchors everything: features index into it, and
	// scripts index into features.
	var numLookups uint16
	if lookupListOffset != 0 {
		if err := checkOffset("lookup list", int(lookupListOffset)); err != nil {
			return err
		}
		var err error
		numLookups, err = parseLookupList(t, t.font, data[lookupListOffset:], t.parsers)
		if err != nil {
			return err
		}
		t.NumLookups = numLookups
	}
	var numFeatures uint16
	if featureListOffset != 0 {
		if err := checkOffset("feature list", int(featureListOffset)); err != nil {
			return err
		}
		var err error
		numFeatures, err = parseFeatureList(t, data[featureListOffset:], numLookups)
		if err != nil {
			return err
		}
	}
	if scriptListOffset != 0 {
		if err := checkOffset("script list", int(scriptListOffset)); err != nil {
			return err
		}
		if err := parseScriptList(t, data[scriptListOffset:], numFeatures); err != nil {
			return err
		}
	}
	if featureVariationsOffset != 0 {
		if err := checkOffset("feature variations", int(featureVariationsOffset)); err != nil {
			return err
		}
		if err := t.parseFeatureVariations(data[featureVariationsOffset:], numFeatures, numLookups); err != nil {
			return err
		}
	}

	t.data = data
	return nil
}

func (t *LayoutTable) parseFeatureVariations(data []byte, numFeatures, numLookups uint16) error {
	sub := NewBuffer(data)
	var major, minor uint16
	var recordCount uint32
	if !sub.ReadU16(&major) || !sub.ReadU16(&minor) || !sub.ReadU32(&recordCount) {
		return t.Error("feature variations: failed to read header")
	}
	if major != 1 || minor != 0 {
		return t.Error("feature variations: bad version %d.%d", major, minor)
	}
	if int64(recordCount) > int64(len(data)-8)/8 {
		return t.Error("feature variations: bad record count %d", recordCount)
	}
	for i := uint32(0); i < recordCount; i++ {
		var conditionSetOffset, substitutionOffset uint32
		if !sub.ReadU32(&conditionSetOffset) || !sub.ReadU32(&substitutionOffset) {
			return t.Error("feature variations: failed to read record %d", i)
		}
		if conditionSetOffset != 0 {
			if int(conditionSetOffset) >= len(data) {
				return t.Error("feature variations: bad condition set offset %d", conditionSetOffset)
			}
			if err := t.parseConditionSet(data[conditionSetOffset:]); err != nil {
				return err
			}
		}
		if substitutionOffset != 0 {
			if int(substitutionOffset) >= len(data) {
				return t.Error("feature variations: bad substitution offset %d", substitutionOffset)
			}
			if err := t.parseFeatureTableSubstitution(data[substitutionOffset:],
				numFeatures, numLookups); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *LayoutTable) parseConditionSet(data []byte) error {
	sub := NewBuffer(data)
	var conditionCount uint16
	if !sub.ReadU16(&conditionCount) {
		return t.Error("condition set: failed to read count")
	}
	fvar := t.font.Fvar()
	for i := 0; i < int(conditionCount); i++ {
		var offset uint32
		if !sub.ReadU32(&offset) {
			return t.Error("condition set: failed to read condition offset %d", i)
		}
		if int(offset) >= len(data) {
			return t.Error("condition set: bad condition offset %d", offset)
		}
		cond := NewBuffer(data[offset:])
		var format, axisIndex uint16
		var minValue, maxValue int16
		if !cond.ReadU16(&format) || !cond.ReadU16(&axisIndex) ||
			!cond.ReadS16(&minValue) || !cond.ReadS16(&maxValue) {
			return t.Error("condition set: failed to read condition %d", i)
		}
		if format != 1 {
			t.Warning("condition set: unknown condition format %d", format)
			continue
		}
		if fvar == nil || axisIndex >= fvar.AxisCount {
			return t.Error("condition set: bad axis index %d", axisIndex)
		}
		if minValue > maxValue {
			return t.Error("condition set: bad axis range in condition %d", i)
		}
	}
	return nil
}

func (t *LayoutTable) parseFeatureTableSubstitution(data []byte,
	numFeatures, numLookups uint16) error {

	sub := NewBuffer(data)
	var major, minor, substitutionCount uint16
	if !sub.ReadU16(&major) || !sub.ReadU16(&minor) || !sub.ReadU16(&substitutionCount) {
		return t.Error("feature substitution: failed to read header")
	}
	if major != 1 || minor != 0 {
		return t.Error("feature substitution: bad version %d.%d", major, minor)
	}
	for i := 0; i < int(substitutionCount); i++ {
		var featureIndex uint16
		var alternateOffset uint32
		if !sub.ReadU16(&featureIndex) || !sub.ReadU32(&alternateOffset) {
			return t.Error("feature substitution: failed to read record %d", i)
		}
		if featureIndex >= numFeatures {
			return t.Error("feature substitution: bad feature index %d", featureIndex)
		}
		if int(alternateOffset) >= len(data) {
			return t.Error("feature substitution: bad alternate feature offset %d", alternateOffset)
		}
		if err := parseFeature(t, data[alternateOffset:], Tag(0), numLookups); err != nil {
			return err
		}
	}
	return nil
}

func (t *LayoutTable) Serialize(s *Serializer) error {
	if !s.Write(t.data) {
		return t.Error("failed to write table")
	}
	return nil
}

// --- Shared (chain) context subtables ----------------------------------------

func parseSequenceLookupRecords(r reporter, sub *Buffer, count uint16,
	inputLength uint16, ctx *layoutContext) error {

	for i := 0; i < int(count); i++ {
		var sequenceIndex, lookupIndex uint16
		if !sub.ReadU16(&sequenceIndex) || !sub.ReadU16(&lookupIndex) {
			return r.Error("context: failed to read sequence lookup record %d", i)
		}
		if sequenceIndex >= inputLength {
			return r.Error("context: bad sequence index %d", sequenceIndex)
		}
		if lookupIndex >= ctx.numLookups {
			return r.Error("context: bad lookup index %d", lookupIndex)
		}
	}
	return nil
}

func parseContextRule(r reporter, data []byte, ctx *layoutContext, classes bool) error {
	sub := NewBuffer(data)
	var glyphCount, lookupCount uint16
	if !sub.ReadU16(&glyphCount) || !sub.ReadU16(&lookupCount) {
		return r.Error("context: failed to read rule header")
	}
	if glyphCount == 0 {
		return r.Error("context: empty input sequence")
	}
	for i := 0; i < int(glyphCount)-1; i++ {
		var glyph uint16
		if !sub.ReadU16(&glyph) {
			return r.Error("context: failed to read input %d", i)
		}
		if !classes && glyph >= ctx.numGlyphs {
			return r.Error("context: bad input glyph id %d", glyph)
		}
	}
	return parseSequenceLookupRecords(r, sub, lookupCount, glyphCount, ctx)
}

func parseRuleSet(r reporter, data []byte, ctx *layoutContext,
	classes bool, chain bool) error {

	sub := NewBuffer(data)
	var ruleCount uint16
	if !sub.ReadU16(&ruleCount) {
		return r.Error("context: failed to read rule count")
	}
	for i := 0; i < int(ruleCount); i++ {
		var offset uint16
		if !sub.ReadU16(&offset) {
			return r.Error("context: failed to read rule offset %d", i)
		}
		if int(offset) < 2+int(ruleCount)*2 || int(offset) >= len(data) {
			return r.Error("context: bad rule offset %d", offset)
		}
		var err error
		if chain {
			err = parseChainContextRule(r, data[offset:], ctx, classes)
		} else {
			err = parseContextRule(r, data[offset:], ctx, classes)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func parseChainContextRule(r reporter, data []byte, ctx *layoutContext, classes bool) error {
	sub := NewBuffer(data)

	readSequence := func(name string, allowEmpty bool) (uint16, error) {
		var count uint16
		if !sub.ReadU16(&count) {
			return 0, r.Error("chain context: failed to read %s count", name)
		}
		if !allowEmpty && count == 0 {
			return 0, r.Error("chain context: empty %s sequence", name)
		}
		n := int(count)
		if name == "input" {
			n-- // first input glyph comes from the coverage
		}
		for i := 0; i < n; i++ {
			var glyph uint16
			if !sub.ReadU16(&glyph) {
				return 0, r.Error("chain context: failed to read %s glyph %d", name, i)
			}
			if !classes && glyph >= ctx.numGlyphs {
				return 0, r.Error("chain context: bad %s glyph id %d", name, glyph)
			}
		}
		return count, nil
	}

	if _, err := readSequence("backtrack", true); err != nil {
		return err
	}
	inputCount, err := readSequence("input", false)
	if err != nil {
		return err
	}
	if _, err := readSequence("lookahead", true); err != nil {
		return err
	}

	var lookupCount uint16
	if !sub.ReadU16(&lookupCount) {
		return r.Error("chain context: failed to read lookup record count")
	}
	return parseSequenceLookupRecords(r, sub, lookupCount, inputCount, ctx)
}

func parseCoverageArray(r reporter, sub *Buffer, data []byte, count uint16,
	ctx *layoutContext) error {

	for i := 0; i < int(count); i++ {
		var offset uint16
		if !sub.ReadU16(&offset) {
			return r.Error("context: failed to read coverage offset %d", i)
		}
		if int(offset) >= len(data) {
			return r.Error("context: bad coverage offset %d", offset)
		}
		if err := parseCoverage(r, data[offset:], ctx.numGlyphs, -1); err != nil {
			return err
		}
	}
	return nil
}

// parseContextSubtable handles GSUB lookup type 5 and GPOS lookup type 7.
func parseContextSubtable(r reporter, data []byte, ctx *layoutContext) error {
	sub := NewBuffer(data)
	var format uint16
	if !sub.ReadU16(&format) {
		return r.Error("context: failed to read format")
	}
	switch format {
	case 1, 2:
		var coverageOffset uint16
		if !sub.ReadU16(&coverageOffset) {
			return r.Error("context: failed to read coverage offset")
		}
		classes := format == 2
		if classes {
			var classDefOffset uint16
			if !sub.ReadU16(&classDefOffset) {
				return r.Error("context: failed to read class definition offset")
			}
			if int(classDefOffset) >= len(data) {
				return r.Error("context: bad class definition offset %d", classDefOffset)
			}
			if err := parseClassDef(r, data[classDefOffset:], ctx.numGlyphs, 0xfffe); err != nil {
				return err
			}
		}
		var setCount uint16
		if !sub.ReadU16(&setCount) {
			return r.Error("context: failed to read rule set count")
		}
		if int(coverageOffset) >= len(data) {
			return r.Error("context: bad coverage offset %d", coverageOffset)
		}
		if err := parseCoverage(r, data[coverageOffset:], ctx.numGlyphs, -1); err != nil {
			return err
		}
		for i := 0; i < int(setCount); i++ {
			var offset uint16
			if !sub.ReadU16(&offset) {
				return r.Error("context: failed to read rule set offset %d", i)
			}
			if offset == 0 {
				continue // class-based sets may be absent
			}
			if int(offset) >= len(data) {
				return r.Error("context: bad rule set offset %d", offset)
			}
			if err := parseRuleSet(r, data[offset:], ctx, classes, false); err != nil {
				return err
			}
		}
		return nil
	case 3:
		var glyphCount, lookupCount uint16
		if !sub.ReadU16(&glyphCount) || !sub.ReadU16(&lookupCount) {
			return r.Error("context: failed to read format 3 header")
		}
		if glyphCount == 0 {
			return r.Error("context: empty input sequence")
		}
		if err := parseCoverageArray(r, sub, data, glyphCount, ctx); err != nil {
			return err
		}
		return parseSequenceLookupRecords(r, sub, lookupCount, glyphCount, ctx)
	}
	return r.Error("context: unknown format %d", format)
}

// parseChainContextSubtable handles GSUB lookup type 6 and GPOS lookup
// type 8.
func parseChainContextSubtable(r reporter, data []byte, ctx *layoutContext) error {
	sub := NewBuffer(data)
	var format uint16
	if !sub.ReadU16(&format) {
		return r.Error("chain context: failed to read format")
	}
	switch format {
	case 1, 2:
		var coverageOffset uint16
		if !sub.ReadU16(&coverageOffset) {
			return r.Error("chain context: failed to read coverage offset")
		}
		classes := format == 2
		if classes {
			for _, name := range []string{"backtrack", "input", "lookahead"} {
				var classDefOffset uint16
				if !sub.ReadU16(&classDefOffset) {
					return r.Error("chain context: failed to read %s class definition offset", name)
				}
				if classDefOffset == 0 {
					continue
				}
				if int(classDefOffset) >= len(data) {
					return r.Error("chain context: bad %s class definition offset %d",
						name, classDefOffset)
				}
				if err := parseClassDef(r, data[classDefOffset:], ctx.numGlyphs, 0xfffe); err != nil {
					return err
				}
			}
		}
		var setCount uint16
		if !sub.ReadU16(&setCount) {
			return r.Error("chain context: failed to read rule set count")
		}
		if int(coverageOffset) >= len(data) {
			return r.Error("chain context: bad coverage offset %d", coverageOffset)
		}
		if err := parseCoverage(r, data[coverageOffset:], ctx.numGlyphs, -1); err != nil {
			return err
		}
		for i := 0; i < int(setCount); i++ {
			var offset uint16
			if !sub.ReadU16(&offset) {
				return r.Error("chain context: failed to read rule set offset %d", i)
			}
			if offset == 0 {
				continue
			}
			if int(offset) >= len(data) {
				return r.Error("chain context: bad rule set offset %d", offset)
			}
			if err := parseRuleSet(r, data[offset:], ctx, classes, true); err != nil {
				return err
			}
		}
		return nil
	case 3:
		var backtrackCount uint16
		if !sub.ReadU16(&backtrackCount) {
			return r.Error("chain context: failed to read backtrack count")
		}
		if err := parseCoverageArray(r, sub, data, backtrackCount, ctx); err != nil {
			return err
		}
		var inputCount uint16
		if !sub.ReadU16(&inputCount) {
			return r.Error("chain context: failed to read input count")
		}
		if inputCount == 0 {
			return r.Error("chain context: empty input sequence")
		}
		if err := parseCoverageArray(r, sub, data, inputCount, ctx); err != nil {
			return err
		}
		var lookaheadCount uint16
		if !sub.ReadU16(&lookaheadCount) {
			return r.Error("chain context: failed to read lookahead count")
		}
		if err := parseCoverageArray(r, sub, data, lookaheadCount, ctx); err != nil {
			return err
		}
		var lookupCount uint16
		if !sub.ReadU16(&lookupCount) {
			return r.Error("chain context: failed to read lookup record count")
		}
		return parseSequenceLookupRecords(r, sub, lookupCount, inputCount, ctx)
	}
	return r.Error("chain context: unknown format %d", format)
}

// makeExtensionParser returns the parser for extension lookups (GSUB
// type 7, GPOS type 9). An extension must not point at another
// extension.
func makeExtensionParser(extensionType uint16, parsers func() []lookupSubtableParser) lookupSubtableParser {
	return func(r reporter, data []byte, ctx *layoutContext) error {
		sub := NewBuffer(data)
		var format, lookupType uint16
		var offset uint32
		if !sub.ReadU16(&format) || !sub.ReadU16(&lookupType) || !sub.ReadU32(&offset) {
			return r.Error("extension: failed to read header")
		}
		if format != 1 {
			return r.Error("extension: unknown format %d", format)
		}
		if lookupType == extensionType {
			return r.Error("extension: extension points at another extension")
		}
		table := parsers()
		if lookupType == 0 || int(lookupType) > len(table) {
			return r.Error("extension: bad lookup type %d", lookupType)
		}
		if int64(offset) < 8 || int64(offset) >= int64(len(data)) {
			return r.Error("extension: bad subtable offset %d", offset)
		}
		return table[lookupType-1](r, data[offset:], ctx)
	}
}

// --- GSUB lookup subtables ---------------------------------------------------

func parseSingleSubst(r reporter, data []byte, ctx *layoutContext) error {
	sub := NewBuffer(data)
	var format, coverageOffset uint16
	if !sub.ReadU16(&format) || !sub.ReadU16(&coverageOffset) {
		return r.Error("single substitution: failed to read header")
	}
	if int(coverageOffset) >= len(data) {
		return r.Error("single substitution: bad coverage offset %d", coverageOffset)
	}
	switch format {
	case 1:
		var delta int16
		if !sub.ReadS16(&delta) {
			return r.Error("single substitution: failed to read glyph delta")
		}
		return parseCoverage(r, data[coverageOffset:], ctx.numGlyphs, -1)
	case 2:
		var glyphCount uint16
		if !sub.ReadU16(&glyphCount) {
			return r.Error("single substitution: failed to read glyph count")
		}
		for i := 0; i < int(glyphCount); i++ {
			var substitute uint16
			if !sub.ReadU16(&substitute) {
				return r.Error("single substitution: failed to read substitute %d", i)
			}
			if substitute >= ctx.numGlyphs {
				return r.Error("single substitution: bad substitute glyph id %d", substitute)
			}
		}
		return parseCoverage(r, data[coverageOffset:], ctx.numGlyphs, int(glyphCount))
	}
	return r.Error("single substitution: unknown format %d", format)
}

func parseSequenceListSubst(r reporter, data []byte, ctx *layoutContext,
	name string, allowEmpty bool) error {

	sub := NewBuffer(data)
	var format, coverageOffset, seqCount uint16
	if !sub.ReadU16(&format) || !sub.ReadU16(&coverageOffset) || !sub.ReadU16(&seqCount) {
		return r.Error("%s substitution: failed to read header", name)
	}
	if format != 1 {
		return r.Error("%s substitution: unknown format %d", name, format)
	}
	if int(coverageOffset) >= len(data) {
		return r.Error("%s substitution: bad coverage offset %d", name, coverageOffset)
	}
	if err := parseCoverage(r, data[coverageOffset:], ctx.numGlyphs, int(seqCount)); err != nil {
		return err
	}
	for i := 0; i < int(seqCount); i++ {
		var offset uint16
		if !sub.ReadU16(&offset) {
			return r.Error("%s substitution: failed to read sequence offset %d", name, i)
		}
		if int(offset) < 6+int(seqCount)*2 || int(offset) >= len(data) {
			return r.Error("%s substitution: bad sequence offset %d", name, offset)
		}
		seq := NewBuffer(data[offset:])
		var glyphCount uint16
		if !seq.ReadU16(&glyphCount) {
			return r.Error("%s substitution: failed to read sequence %d", name, i)
		}
		if !allowEmpty && glyphCount == 0 {
			return r.Error("%s substitution: empty sequence %d", name, i)
		}
		for j := 0; j < int(glyphCount); j++ {
			var glyph uint16
			if !seq.ReadU16(&glyph) {
				return r.Error("%s substitution: failed to read glyph %d of sequence %d", name, j, i)
			}
			if glyph >= ctx.numGlyphs {
				return r.Error("%s substitution: bad glyph id %d", name, glyph)
			}
		}
	}
	return nil
}

func parseMultipleSubst(r reporter, data []byte, ctx *layoutContext) error {
	return parseSequenceListSubst(r, data, ctx, "multiple", false)
}

func parseAlternateSubst(r reporter, data []byte, ctx *layoutContext) error {
	return parseSequenceListSubst(r, data, ctx, "alternate", false)
}

func parseLigatureSubst(r reporter, data []byte, ctx *layoutContext) error {
	sub := NewBuffer(data)
	var format, coverageOffset, setCount uint16
	if !sub.ReadU16(&format) || !sub.ReadU16(&coverageOffset) || !sub.ReadU16(&setCount) {
		return r.Error("ligature substitution: failed to read header")
	}
	if format != 1 {
		return r.Error("ligature substitution: unknown format %d", format)
	}
	if int(coverageOffset) >= len(data) {
		return r.Error("ligature substitution: bad coverage offset %d", coverageOffset)
	}
	if err := parseCoverage(r, data[coverageOffset:], ctx.numGlyphs, int(setCount)); err != nil {
		return err
	}
	for i := 0; i < int(setCount); i++ {
		var setOffset uint16
		if !sub.ReadU16(&setOffset) {
			return r.Error("ligature substitution: failed to read set offset %d", i)
		}
		if int(setOffset) < 6+int(setCount)*2 || int(setOffset) >= len(data) {
			return r.Error("ligature substitution: bad set offset %d", setOffset)
		}
		set := data[setOffset:]
		setBuf := NewBuffer(set)
		var ligCount uint16
		if !setBuf.ReadU16(&ligCount) {
			return r.Error("ligature substitution: failed to read ligature count")
		}
		for j := 0; j < int(ligCount); j++ {
			var ligOffset uint16
			if !setBuf.ReadU16(&ligOffset) {
				return r.Error("ligature substitution: failed to read ligature offset %d", j)
			}
			if int(ligOffset) < 2+int(ligCount)*2 || int(ligOffset) >= len(set) {
				return r.Error("ligature substitution: bad ligature offset %d", ligOffset)
			}
			lig := NewBuffer(set[ligOffset:])
			var ligGlyph, compCount uint16
			if !lig.ReadU16(&ligGlyph) || !lig.ReadU16(&compCount) {
				return r.Error("ligature substitution: failed to read ligature %d", j)
			}
			if ligGlyph >= ctx.numGlyphs {
				return r.Error("ligature substitution: bad ligature glyph id %d", ligGlyph)
			}
			if compCount == 0 {
				return r.Error("ligature substitution: empty component sequence")
			}
			for k := 0; k < int(compCount)-1; k++ {
				var component uint16
				if !lig.ReadU16(&component) {
					return r.Error("ligature substitution: failed to read component %d", k)
				}
				if component >= ctx.numGlyphs {
					return r.Error("ligature substitution: bad component glyph id %d", component)
				}
			}
		}
	}
	return nil
}

func parseReverseChainSubst(r reporter, data []byte, ctx *layoutContext) error {
	sub := NewBuffer(data)
	var format, coverageOffset uint16
	if !sub.ReadU16(&format) || !sub.ReadU16(&coverageOffset) {
		return r.Error("reverse chain substitution: failed to read header")
	}
	if format != 1 {
		return r.Error("reverse chain substitution: unknown format %d", format)
	}
	if int(coverageOffset) >= len(data) {
		return r.Error("reverse chain substitution: bad coverage offset %d", coverageOffset)
	}

	var backtrackCount uint16
	if !sub.ReadU16(&backtrackCount) {
		return r.Error("reverse chain substitution: failed to read backtrack count")
	}
	if err := parseCoverageArray(r, sub, data, backtrackCount, ctx); err != nil {
		return err
	}
	var lookaheadCount uint16
	if !sub.ReadU16(&lookaheadCount) {
		return r.Error("reverse chain substitution: failed to read lookahead count")
	}
	if err := parseCoverageArray(r, sub, data, lookaheadCount, ctx); err != nil {
		return err
	}
	var glyphCount uint16
	if !sub.ReadU16(&glyphCount) {
		return r.Error("reverse chain substitution: failed to read glyph count")
	}
	for i := 0; i < int(glyphCount); i++ {
		var substitute uint16
		if !sub.ReadU16(&substitute) {
			return r.Error("reverse chain substitution: failed to read substitute %d", i)
		}
		if substitute >= ctx.numGlyphs {
			return r.Error("reverse chain substitution: bad substitute glyph id %d", substitute)
		}
	}
	return parseCoverage(r, data[coverageOffset:], ctx.numGlyphs, int(glyphCount))
}

var gsubSubtableParsers []lookupSubtableParser

func init() {
	gsubSubtableParsers = []lookupSubtableParser{
		parseSingleSubst,          // 1
		parseMultipleSubst,        // 2
		parseAlternateSubst,       // 3
		parseLigatureSubst,        // 4
		parseContextSubtable,      // 5
		parseChainContextSubtable, // 6
		makeExtensionParser(7, func() []lookupSubtableParser { return gsubSubtableParsers }), // 7
		parseReverseChainSubst, // 8
	}
}

// --- GPOS lookup subtables ---------------------------------------------------

const (
	valueXPlacementDevice = 0x0010
	valueYPlacementDevice = 0x0020
	valueXAdvanceDevice   = 0x0040
	valueYAdvanceDevice   = 0x0080
	valueFormatReserved   = 0xff00
)

// valueRecordSize returns the byte size of a value record for the given
// value format.
func valueRecordSize(valueFormat uint16) int {
	return bits.OnesCount16(valueFormat&0x00ff) * 2
}

// parseValueRecord reads a value record and validates any device tables
// it points at. Device offsets are relative to base (the subtable).
func parseValueRecord(r reporter, sub *Buffer, base []byte, valueFormat uint16) error {
	if valueFormat&valueFormatReserved != 0 {
		return r.Error("value record: reserved format bits %#x", valueFormat)
	}
	for bit := uint16(0x0001); bit <= 0x0008; bit <<= 1 {
		if valueFormat&bit != 0 {
			var v int16
			if !sub.ReadS16(&v) {
				return r.Error("value record: truncated")
			}
		}
	}
	for bit := uint16(valueXPlacementDevice); bit <= valueYAdvanceDevice; bit <<= 1 {
		if valueFormat&bit != 0 {
			var deviceOffset uint16
			if !sub.ReadU16(&deviceOffset) {
				return r.Error("value record: truncated device offset")
			}
			if err := parseOptionalDevice(r, base, deviceOffset); err != nil {
				return err
			}
		}
	}
	return nil
}

// parseAnchor validates an anchor table.
func parseAnchor(r reporter, data []byte) error {
	sub := NewBuffer(data)
	var format uint16
	var x, y int16
	if !sub.ReadU16(&format) || !sub.ReadS16(&x) || !sub.ReadS16(&y) {
		return r.Error("anchor: failed to read header")
	}
	switch format {
	case 1:
		return nil
	case 2:
		var anchorPoint uint16
		if !sub.ReadU16(&anchorPoint) {
			return r.Error("anchor: truncated format 2")
		}
		return nil
	case 3:
		var xDeviceOffset, yDeviceOffset uint16
		if !sub.ReadU16(&xDeviceOffset) || !sub.ReadU16(&yDeviceOffset) {
			return r.Error("anchor: truncated format 3")
		}
		if err := parseOptionalDevice(r, data, xDeviceOffset); err != nil {
			return err
		}
		return parseOptionalDevice(r, data, yDeviceOffset)
	}
	return r.Error("anchor: unknown format %d", format)
}

func parseOptionalAnchor(r reporter, base []byte, offset uint16) error {
	if offset == 0 {
		return nil
	}
	if int(offset) >= len(base) {
		return r.Error("anchor: offset %d out of bounds", offset)
	}
	return parseAnchor(r, base[offset:])
}

func parseSinglePos(r reporter, data []byte, ctx *layoutContext) error {
	sub := NewBuffer(data)
	var format, coverageOffset, valueFormat uint16
	if !sub.ReadU16(&format) || !sub.ReadU16(&coverageOffset) || !sub.ReadU16(&valueFormat) {
		return r.Error("single positioning: failed to read header")
	}
	if int(coverageOffset) >= len(data) {
		return r.Error("single positioning: bad coverage offset %d", coverageOffset)
	}
	switch format {
	case 1:
		if err := parseValueRecord(r, sub, data, valueFormat); err != nil {
			return err
		}
		return parseCoverage(r, data[coverageOffset:], ctx.numGlyphs, -1)
	case 2:
		var valueCount uint16
		if !sub.ReadU16(&valueCount) {
			return r.Error("single positioning: failed to read value count")
		}
		for i := 0; i < int(valueCount); i++ {
			if err := parseValueRecord(r, sub, data, valueFormat); err != nil {
				return err
			}
		}
		return parseCoverage(r, data[coverageOffset:], ctx.numGlyphs, int(valueCount))
	}
	return r.Error("single positioning: unknown format %d", format)
}

func parsePairPos(r reporter, data []byte, ctx *layoutContext) error {
	sub := NewBuffer(data)
	var format, coverageOffset, valueFormat1, valueFormat2 uint16
	if !sub.ReadU16(&format) || !sub.ReadU16(&coverageOffset) ||
		!sub.ReadU16(&valueFormat1) || !sub.ReadU16(&valueFormat2) {
		return r.Error("pair positioning: failed to read header")
	}
	if int(coverageOffset) >= len(data) {
		return r.Error("pair positioning: bad coverage offset %d", coverageOffset)
	}
	switch format {
	case 1:
		var pairSetCount uint16
		if !sub.ReadU16(&pairSetCount) {
			return r.Error("pair positioning: failed to read pair set count")
		}
		if err := parseCoverage(r, data[coverageOffset:], ctx.numGlyphs, int(pairSetCount)); err != nil {
			return err
		}
		for i := 0; i < int(pairSetCount); i++ {
			var setOffset uint16
			if !sub.ReadU16(&setOffset) {
				return r.Error("pair positioning: failed to read pair set offset %d", i)
			}
			if int(setOffset) < 10+int(pairSetCount)*2 || int(setOffset) >= len(data) {
				return r.Error("pair positioning: bad pair set offset %d", setOffset)
			}
			set := data[setOffset:]
			setBuf := NewBuffer(set)
			var pairCount uint16
			if !setBuf.ReadU16(&pairCount) {
				return r.Error("pair positioning: failed to read pair count")
			}
			prevGlyph := int32(-1)
			for j := 0; j < int(pairCount); j++ {
				var secondGlyph uint16
				if !setBuf.ReadU16(&secondGlyph) {
					return r.Error("pair positioning: failed to read pair %d", j)
				}
				if secondGlyph >= ctx.numGlyphs {
					return r.Error("pair positioning: bad second glyph id %d", secondGlyph)
				}
				if int32(secondGlyph) <= prevGlyph {
					return r.Error("pair positioning: pairs not sorted by second glyph")
				}
				prevGlyph = int32(secondGlyph)
				if err := parseValueRecord(r, setBuf, set, valueFormat1); err != nil {
					return err
				}
				if err := parseValueRecord(r, setBuf, set, valueFormat2); err != nil {
					return err
				}
			}
		}
		return nil
	case 2:
		var classDef1Offset, classDef2Offset, class1Count, class2Count uint16
		if !sub.ReadU16(&classDef1Offset) || !sub.ReadU16(&classDef2Offset) ||
			!sub.ReadU16(&class1Count) || !sub.ReadU16(&class2Count) {
			return r.Error("pair positioning: failed to read format 2 header")
		}
		if err := parseCoverage(r, data[coverageOffset:], ctx.numGlyphs, -1); err != nil {
			return err
		}
		if int(classDef1Offset) >= len(data) || int(classDef2Offset) >= len(data) {
			return r.Error("pair positioning: bad class definition offset")
		}
		if class1Count == 0 || class2Count == 0 {
			return r.Error("pair positioning: zero class count")
		}
		if err := parseClassDef(r, data[classDef1Offset:], ctx.numGlyphs, class1Count-1); err != nil {
			return err
		}
		if err := parseClassDef(r, data[classDef2Offset:], ctx.numGlyphs, class2Count-1); err != nil {
			return err
		}
		for i := 0; i < int(class1Count); i++ {
			for j := 0; j < int(class2Count); j++ {
				if err := parseValueRecord(r, sub, data, valueFormat1); err != nil {
					return err
				}
				if err := parseValueRecord(r, sub, data, valueFormat2); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return r.Error("pair positioning: unknown format %d", format)
}

func parseCursivePos(r reporter, data []byte, ctx *layoutContext) error {
	sub := NewBuffer(data)
	var format, coverageOffset, entryExitCount uint16
	if !sub.ReadU16(&format) || !sub.ReadU16(&coverageOffset) ||
		!sub.ReadU16(&entryExitCount) {
		return r.Error("cursive positioning: failed to read header")
	}
	if format != 1 {
		return r.Error("cursive positioning: unknown format %d", format)
	}
	if int(coverageOffset) >= len(data) {
		return r.Error("cursive positioning: bad coverage offset %d", coverageOffset)
	}
	if err := parseCoverage(r, data[coverageOffset:], ctx.numGlyphs, int(entryExitCount)); err != nil {
		return err
	}
	for i := 0; i < int(entryExitCount); i++ {
		var entryOffset, exitOffset uint16
		if !sub.ReadU16(&entryOffset) || !sub.ReadU16(&exitOffset) {
			return r.Error("cursive positioning: failed to read entry/exit record %d", i)
		}
		if err := parseOptionalAnchor(r, data, entryOffset); err != nil {
			return err
		}
		if err := parseOptionalAnchor(r, data, exitOffset); err != nil {
			return err
		}
	}
	return nil
}

func parseMarkArray(r reporter, data []byte, markClassCount uint16) error {
	sub := NewBuffer(data)
	var markCount uint16
	if !sub.ReadU16(&markCount) {
		return r.Error("mark array: failed to read mark count")
	}
	for i := 0; i < int(markCount); i++ {
		var markClass, anchorOffset uint16
		if !sub.ReadU16(&markClass) || !sub.ReadU16(&anchorOffset) {
			return r.Error("mark array: failed to read mark record %d", i)
		}
		if markClass >= markClassCount {
			return r.Error("mark array: bad mark class %d", markClass)
		}
		if err := parseOptionalAnchor(r, data, anchorOffset); err != nil {
			return err
		}
	}
	return nil
}

// parseMarkAttachPos covers mark-to-base (type 4), mark-to-ligature
// (type 5) and mark-to-mark (type 6) positioning, which share a layout;
// the ligature variant adds one indirection for components.
func parseMarkAttachPos(r reporter, data []byte, ctx *layoutContext, ligature bool) error {
	sub := NewBuffer(data)
	var format, markCoverageOffset, baseCoverageOffset uint16
	var markClassCount, markArrayOffset, baseArrayOffset uint16
	if !sub.ReadU16(&format) || !sub.ReadU16(&markCoverageOffset) ||
		!sub.ReadU16(&baseCoverageOffset) || !sub.ReadU16(&markClassCount) ||
		!sub.ReadU16(&markArrayOffset) || !sub.ReadU16(&baseArrayOffset) {
		return r.Error("mark attachment: failed to read header")
	}
	if format != 1 {
		return r.Error("mark attachment: unknown format %d", format)
	}
	if markClassCount == 0 {
		return r.Error("mark attachment: zero mark classes")
	}
	if int(markCoverageOffset) >= len(data) || int(baseCoverageOffset) >= len(data) ||
		int(markArrayOffset) >= len(data) || int(baseArrayOffset) >= len(data) {
		return r.Error("mark attachment: offset out of bounds")
	}
	if err := parseCoverage(r, data[markCoverageOffset:], ctx.numGlyphs, -1); err != nil {
		return err
	}
	if err := parseCoverage(r, data[baseCoverageOffset:], ctx.numGlyphs, -1); err != nil {
		return err
	}
	if err := parseMarkArray(r, data[markArrayOffset:], markClassCount); err != nil {
		return err
	}

	array := data[baseArrayOffset:]
	arrayBuf := NewBuffer(array)
	var count uint16
	if !arrayBuf.ReadU16(&count) {
		return r.Error("mark attachment: failed to read attachment array count")
	}
	for i := 0; i < int(count); i++ {
		if ligature {
			var attachOffset uint16
			if !arrayBuf.ReadU16(&attachOffset) {
				return r.Error("mark attachment: failed to read ligature attach offset %d", i)
			}
			if int(attachOffset) >= len(array) {
				return r.Error("mark attachment: bad ligature attach offset %d", attachOffset)
			}
			attach := array[attachOffset:]
			attachBuf := NewBuffer(attach)
			var componentCount uint16
			if !attachBuf.ReadU16(&componentCount) {
				return r.Error("mark attachment: failed to read component count")
			}
			for j := 0; j < int(componentCount); j++ {
				for k := 0; k < int(markClassCount); k++ {
					var anchorOffset uint16
					if !attachBuf.ReadU16(&anchorOffset) {
						return r.Error("mark attachment: failed to read component anchor")
					}
					if err := parseOptionalAnchor(r, attach, anchorOffset); err != nil {
						return err
					}
				}
			}
		} else {
			for k := 0; k < int(markClassCount); k++ {
				var anchorOffset uint16
				if !arrayBuf.ReadU16(&anchorOffset) {
					return r.Error("mark attachment: failed to read anchor offset")
				}
				if err := parseOptionalAnchor(r, array, anchorOffset); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func parseMarkBasePos(r reporter, data []byte, ctx *layoutContext) error {
	return parseMarkAttachPos(r, data, ctx, false)
}

func parseMarkLigPos(r reporter, data []byte, ctx *layoutContext) error {
	return parseMarkAttachPos(r, data, ctx, true)
}

func parseMarkMarkPos(r reporter, data []byte, ctx *layoutContext) error {
	return parseMarkAttachPos(r, data, ctx, false)
}

var gposSubtableParsers []lookupSubtableParser

func init() {
	gposSubtableParsers = []lookupSubtableParser{
		parseSinglePos,            // 1
		parsePairPos,              // 2
		parseCursivePos,           // 3
		parseMarkBasePos,          // 4
		parseMarkLigPos,           // 5
		parseMarkMarkPos,          // 6
		parseContextSubtable,      // 7
		parseChainContextSubtable, // 8
		makeExtensionParser(9, func() []lookupSubtableParser { return gposSubtableParsers }), // 9
	}
}
