package ots

// OpenType Layout Common Table Formats
// https://learn.microsoft.com/en-us/typography/opentype/spec/chapter2

const (
	// The 'DFLT' script tag gets special treatment.
	scriptTagDflt = Tag(0x44464c54)
	// Signals that a language system has no required feature.
	noRequiredFeature = 0xffff
	// Lookup flag bit indicating the presence of a mark filtering set.
	useMarkFilteringSetBit = 0x0010
	// Mask for the mark attachment type of a lookup flag.
	markAttachmentTypeMask = 0xff00
	// Highest defined device table delta format.
	maxDeltaFormat = 3
)

// reporter is the diagnostic surface the layout helpers use; every table
// type provides it through its embedded base.
type reporter interface {
	Error(format string, args ...interface{}) error
	Warning(format string, args ...interface{})
}

// --- Coverage and class definition tables -----------------------------------

func parseCoverageFormat1(r reporter, data []byte, numGlyphs uint16, expectedCount int) error {
	sub := NewBuffer(data)
	if !sub.Skip(2) {
		return r.Error("coverage: failed to skip format")
	}
	var glyphCount uint16
	if !sub.ReadU16(&glyphCount) {
		return r.Error("coverage: failed to read glyph count")
	}
	if glyphCount > numGlyphs {
		return r.Error("coverage: bad glyph count %d", glyphCount)
	}
	prev := int32(-1)
	for i := 0; i < int(glyphCount); i++ {
		var glyph uint16
		if !sub.ReadU16(&glyph) {
			return r.Error("coverage: failed to read glyph %d", i)
		}
		if glyph >= numGlyphs {
			return r.Error("coverage: bad glyph id %d", glyph)
		}
		if int32(glyph) <= prev {
			return r.Error("coverage: glyphs not sorted")
		}
		prev = int32(glyph)
	}
	if expectedCount >= 0 && int(glyphCount) != expectedCount {
		return r.Error("coverage: %d glyphs covered, caller expects %d",
			glyphCount, expectedCount)
	}
	return nil
}

func parseCoverageFormat2(r reporter, data []byte, numGlyphs uint16, expectedCount int) error {
	sub := NewBuffer(data)
	if !sub.Skip(2) {
		return r.Error("coverage: failed to skip format")
	}
	var rangeCount uint16
	if !sub.ReadU16(&rangeCount) {
		return r.Error("coverage: failed to read range count")
	}
	if rangeCount > numGlyphs {
		return r.Error("coverage: bad range count %d", rangeCount)
	}
	var lastEnd int32 = -1
	covered := 0
	for i := 0; i < int(rangeCount); i++ {
		var start, end, startCoverageIndex uint16
		if !sub.ReadU16(&start) || !sub.ReadU16(&end) ||
			!sub.ReadU16(&startCoverageIndex) {
			return r.Error("coverage: failed to read range %d", i)
		}
		if start > end || int32(start) <= lastEnd {
			return r.Error("coverage: glyph range %d overlapping or out of order", i)
		}
		if end >= numGlyphs {
			return r.Error("coverage: bad glyph id %d in range %d", end, i)
		}
		if int(startCoverageIndex) != covered {
			return r.Error("coverage: bad start coverage index %d in range %d",
				startCoverageIndex, i)
		}
		lastEnd = int32(end)
		covered += int(end-start) + 1
	}
	if expectedCount >= 0 && covered != expectedCount {
		return r.Error("coverage: %d glyphs covered, caller expects %d",
			covered, expectedCount)
	}
	return nil
}

// parseCoverage validates a coverage table. Callers that know how many
// glyphs must be covered pass the count; -1 skips the check.
func parseCoverage(r reporter, data []byte, numGlyphs uint16, expectedCount int) error {
	sub := NewBuffer(data)
	var format uint16
	if !sub.ReadU16(&format) {
		return r.Error("coverage: failed to read format")
	}
	switch format {
	case 1:
		return parseCoverageFormat1(r, data, numGlyphs, expectedCount)
	case 2:
		return parseCoverageFormat2(r, data, numGlyphs, expectedCount)
	}
	return r.Error("coverage: unknown format %d", format)
}

func parseClassDefFormat1(r reporter, data []byte, numGlyphs, numClasses uint16) error {
	sub := NewBuffer(data)
	if !sub.Skip(2) {
		return r.Error("class definition: failed to skip format")
	}
	var startGlyph, glyphCount uint16
	if !sub.ReadU16(&startGlyph) || !sub.ReadU16(&glyphCount) {
		return r.Error("class definition: failed to read header")
	}
	if startGlyph > numGlyphs {
		return r.Error("class definition: bad start glyph id %d", startGlyph)
	}
	if glyphCount > numGlyphs {
		return r.Error("class definition: bad glyph count %d", glyphCount)
	}
	for i := 0; i < int(glyphCount); i++ {
		var classValue uint16
		if !sub.ReadU16(&classValue) {
			return r.Error("class definition: failed to read class %d", i)
		}
		if classValue > numClasses {
			return r.Error("class definition: bad class value %d", classValue)
		}
	}
	return nil
}

func parseClassDefFormat2(r reporter, data []byte, numGlyphs, numClasses uint16) error {
	sub := NewBuffer(data)
	if !sub.Skip(2) {
		return r.Error("class definition: failed to skip format")
	}
	var rangeCount uint16
	if !sub.ReadU16(&rangeCount) {
		return r.Error("class definition: failed to read range count")
	}
	if rangeCount > numGlyphs {
		return r.Error("class definition: bad range count %d", rangeCount)
	}
	var lastEnd int32 = -1
	for i := 0; i < int(rangeCount); i++ {
		var start, end, classValue uint16
		if !sub.ReadU16(&start) || !sub.ReadU16(&end) || !sub.ReadU16(&classValue) {
			return r.Error("class definition: failed to read range %d", i)
		}
		if start > end || int32(start) <= lastEnd {
			return r.Error("class definition: glyph range %d overlapping or out of order", i)
		}
		if classValue > numClasses {
			return r.Error("class definition: bad class value %d", classValue)
		}
		lastEnd = int32(end)
	}
	return nil
}

// parseClassDef validates a class definition table against the caller's
// class count.
func parseClassDef(r reporter, data []byte, numGlyphs, numClasses uint16) error {
	sub := NewBuffer(data)
	var format uint16
	if !sub.ReadU16(&format) {
		return r.Error("class definition: failed to read format")
	}
	switch format {
	case 1:
		return parseClassDefFormat1(r, data, numGlyphs, numClasses)
	case 2:
		return parseClassDefFormat2(r, data, numGlyphs, numClasses)
	}
	return r.Error("class definition: unknown format %d", format)
}

// parseDevice validates a device or variation-index table.
func parseDevice(r reporter, data []byte) error {
	sub := NewBuffer(data)
	var startSize, endSize, deltaFormat uint16
	if !sub.ReadU16(&startSize) || !sub.ReadU16(&endSize) || !sub.ReadU16(&deltaFormat) {
		return r.Error("device: failed to read header")
	}
	if deltaFormat == 0x8000 {
		// VariationIndex table: startSize/endSize hold the delta-set
		// outer/inner indices, nothing further to check here.
		return nil
	}
	if startSize > endSize {
		return r.Error("device: bad size range %d > %d", startSize, endSize)
	}
	if deltaFormat == 0 || deltaFormat > maxDeltaFormat {
		return r.Error("device: bad delta format %d", deltaFormat)
	}
	// Delta values per uint16 word; the packed data itself can take any
	// value and is only skipped.
	numUnits := int(endSize-startSize)/(1<<(4-deltaFormat)) + 1
	if !sub.Skip(numUnits * 2) {
		return r.Error("device: %d delta words exceed table bounds", numUnits)
	}
	return nil
}

// parseOptionalDevice validates a device table behind a possibly-null
// offset relative to base.
func parseOptionalDevice(r reporter, base []byte, offset uint16) error {
	if offset == 0 {
		return nil
	}
	if int(offset) >= len(base) {
		return r.Error("device: offset %d out of bounds", offset)
	}
	return parseDevice(r, base[offset:])
}

// --- Script, feature and lookup lists ---------------------------------------

func parseLangSys(r reporter, sub *Buffer, tag Tag, numFeatures uint16) error {
	var lookupOrderOffset, reqFeatureIndex, featureCount uint16
	if !sub.ReadU16(&lookupOrderOffset) || !sub.ReadU16(&reqFeatureIndex) ||
		!sub.ReadU16(&featureCount) {
		return r.Error("language system %s: failed to read header", tag)
	}
	// lookupOrderOffset is reserved and must be NULL.
	if lookupOrderOffset != 0 {
		return r.Error("language system %s: non-null lookup order", tag)
	}
	if reqFeatureIndex != noRequiredFeature && reqFeatureIndex >= numFeatures {
		return r.Error("language system %s: bad required feature index %d", tag, reqFeatureIndex)
	}
	if featureCount > numFeatures {
		return r.Error("language system %s: bad feature count %d", tag, featureCount)
	}
	for i := 0; i < int(featureCount); i++ {
		var featureIndex uint16
		if !sub.ReadU16(&featureIndex) {
			return r.Error("language system %s: failed to read feature index %d", tag, i)
		}
		if featureIndex >= numFeatures {
			return r.Error("language system %s: bad feature index %d", tag, featureIndex)
		}
	}
	return nil
}

func parseScript(r reporter, data []byte, tag Tag, numFeatures uint16) error {
	sub := NewBuffer(data)
	var defaultLangSysOffset, langSysCount uint16
	if !sub.ReadU16(&defaultLangSysOffset) || !sub.ReadU16(&langSysCount) {
		return r.Error("script %s: failed to read header", tag)
	}

	// A DFLT script must carry a default language system and no records.
	if tag == scriptTagDflt && (defaultLangSysOffset == 0 || langSysCount != 0) {
		return r.Error("script DFLT: missing default language system")
	}

	recordsEnd := 4 + int(langSysCount)*6
	if recordsEnd > 0xffff {
		return r.Error("script %s: language system records exceed 64K", tag)
	}

	type langSysRecord struct {
		tag    Tag
		offset uint16
	}
	records := make([]langSysRecord, 0, langSysCount)
	var lastTag Tag
	for i := 0; i < int(langSysCount); i++ {
		var rec langSysRecord
		if !sub.ReadTag(&rec.tag) || !sub.ReadU16(&rec.offset) {
			return r.Error("script %s: failed to read language system record %d", tag, i)
		}
		if lastTag != 0 && lastTag > rec.tag {
			return r.Error("script %s: language system records not sorted", tag)
		}
		lastTag = rec.tag
		if int(rec.offset) < recordsEnd || int(rec.offset) >= len(data) {
			return r.Error("script %s: bad language system offset %d", tag, rec.offset)
		}
		records = append(records, rec)
	}

	if defaultLangSysOffset != 0 {
		if int(defaultLangSysOffset) < recordsEnd || int(defaultLangSysOffset) >= len(data) {
			return r.Error("script %s: bad default language system offset %d",
				tag, defaultLangSysOffset)
		}
		sub.SetOffset(int(defaultLangSysOffset))
		if err := parseLangSys(r, sub, tag, numFeatures); err != nil {
			return err
		}
	}
	for _, rec := range records {
		sub.SetOffset(int(rec.offset))
		if err := parseLangSys(r, sub, rec.tag, numFeatures); err != nil {
			return err
		}
	}
	return nil
}

// parseScriptList validates a script list. The feature list must have
// been parsed first, for the feature count.
func parseScriptList(r reporter, data []byte, numFeatures uint16) error {
	sub := NewBuffer(data)
	var scriptCount uint16
	if !sub.ReadU16(&scriptCount) {
		return r.Error("script list: failed to read script count")
	}
	recordsEnd := 2 + int(scriptCount)*6
	if recordsEnd > 0xffff {
		return r.Error("script list: records exceed 64K")
	}

	type scriptRecord struct {
		tag    Tag
		offset uint16
	}
	records := make([]scriptRecord, 0, scriptCount)
	var lastTag Tag
	for i := 0; i < int(scriptCount); i++ {
		var rec scriptRecord
		if !sub.ReadTag(&rec.tag) || !sub.ReadU16(&rec.offset) {
			return r.Error("script list: failed to read record %d", i)
		}
		if lastTag != 0 && lastTag > rec.tag {
			return r.Error("script list: records not sorted by tag")
		}
		lastTag = rec.tag
		if int(rec.offset) < recordsEnd || int(rec.offset) >= len(data) {
			return r.Error("script list: bad script offset %d", rec.offset)
		}
		records = append(records, rec)
	}
	for _, rec := range records {
		if err := parseScript(r, data[rec.offset:], rec.tag, numFeatures); err != nil {
			return err
		}
	}
	return nil
}

func parseFeature(r reporter, data []byte, tag Tag, numLookups uint16) error {
	sub := NewBuffer(data)
	var featureParamsOffset, lookupCount uint16
	if !sub.ReadU16(&featureParamsOffset) || !sub.ReadU16(&lookupCount) {
		return r.Error("feature %s: failed to read header", tag)
	}
	tableEnd := 4 + int(numLookups)*2
	if tableEnd > 0xffff {
		return r.Error("feature %s: lookup indices exceed 64K", tag)
	}
	if featureParamsOffset != 0 &&
		(int(featureParamsOffset) < tableEnd || int(featureParamsOffset) >= len(data)) {
		return r.Error("feature %s: bad feature params offset %d", tag, featureParamsOffset)
	}
	for i := 0; i < int(lookupCount); i++ {
		var lookupIndex uint16
		if !sub.ReadU16(&lookupIndex) {
			return r.Error("feature %s: failed to read lookup index %d", tag, i)
		}
		if lookupIndex >= numLookups {
			return r.Error("feature %s: bad lookup index %d", tag, lookupIndex)
		}
	}
	return nil
}

// parseFeatureList validates a feature list and returns the feature
// count. The lookup list must have been parsed first.
func parseFeatureList(r reporter, data []byte, numLookups uint16) (uint16, error) {
	sub := NewBuffer(data)
	var featureCount uint16
	if !sub.ReadU16(&featureCount) {
		return 0, r.Error("feature list: failed to read feature count")
	}
	recordsEnd := 2 + int(featureCount)*6
	if recordsEnd > 0xffff {
		return 0, r.Error("feature list: records exceed 64K")
	}

	type featureRecord struct {
		tag    Tag
		offset uint16
	}
	records := make([]featureRecord, 0, featureCount)
	var lastTag Tag
	for i := 0; i < int(featureCount); i++ {
		var rec featureRecord
		if !sub.ReadTag(&rec.tag) || !sub.ReadU16(&rec.offset) {
			return 0, r.Error("feature list: failed to read record %d", i)
		}
		if lastTag != 0 && lastTag > rec.tag {
			return 0, r.Error("feature list: records not sorted by tag")
		}
		lastTag = rec.tag
		if int(rec.offset) < recordsEnd || int(rec.offset) >= len(data) {
			return 0, r.Error("feature list: bad feature offset %d", rec.offset)
		}
		records = append(records, rec)
	}
	for _, rec := range records {
		if err := parseFeature(r, data[rec.offset:], rec.tag, numLookups); err != nil {
			return 0, err
		}
	}
	return featureCount, nil
}

// lookupSubtableParser validates one lookup subtable of a specific
// lookup type. ctx carries shared bounds (glyph count, lookup count).
type lookupSubtableParser func(r reporter, data []byte, ctx *layoutContext) error

// layoutContext bundles the cross-table bounds a lookup subtable parser
// needs.
type layoutContext struct {
	font       *Font
	numGlyphs  uint16
	numLookups uint16
}

func parseLookup(r reporter, data []byte, ctx *layoutContext,
	parsers []lookupSubtableParser) error {

	sub := NewBuffer(data)
	var lookupType, lookupFlag, subtableCount uint16
	if !sub.ReadU16(&lookupType) || !sub.ReadU16(&lookupFlag) ||
		!sub.ReadU16(&subtableCount) {
		return r.Error("lookup: failed to read header")
	}
	if lookupType == 0 || int(lookupType) > len(parsers) {
		return r.Error("lookup: bad lookup type %d", lookupType)
	}

	gdef := ctx.font.GDEF()
	if lookupFlag&markAttachmentTypeMask != 0 {
		if gdef == nil || !gdef.HasMarkAttachmentClassDef {
			return r.Error("lookup: mark attachment type without GDEF mark attachment classes")
		}
	}
	useMarkFilteringSet := false
	if lookupFlag&useMarkFilteringSetBit != 0 {
		if gdef == nil || !gdef.HasMarkGlyphSets {
			return r.Error("lookup: mark filtering set without GDEF mark glyph sets")
		}
		useMarkFilteringSet = true
	}

	lookupEnd := 6 + int(subtableCount)*2
	if useMarkFilteringSet {
		lookupEnd += 2
	}
	if lookupEnd > 0xffff {
		return r.Error("lookup: subtable offsets exceed 64K")
	}
	offsets := make([]uint16, subtableCount)
	for i := range offsets {
		if !sub.ReadU16(&offsets[i]) {
			return r.Error("lookup: failed to read subtable offset %d", i)
		}
		if int(offsets[i]) < lookupEnd || int(offsets[i]) >= len(data) {
			return r.Error("lookup: bad subtable offset %d", offsets[i])
		}
	}

	if useMarkFilteringSet {
		var markFilteringSet uint16
		if !sub.ReadU16(&markFilteringSet) {
			return r.Error("lookup: failed to read mark filtering set")
		}
		if markFilteringSet >= gdef.NumMarkGlyphSets {
			return r.Error("lookup: bad mark filtering set %d", markFilteringSet)
		}
	}

	for _, offset := range offsets {
		if err := parsers[lookupType-1](r, data[offset:], ctx); err != nil {
			return err
		}
	}
	return nil
}

// parseLookupList validates a lookup list and returns the lookup count.
// This runs before the feature list, which validates its lookup indices
// against the returned count.
func parseLookupList(r reporter, f *Font, data []byte,
	parsers []lookupSubtableParser) (uint16, error) {

	sub := NewBuffer(data)
	var numLookups uint16
	if !sub.ReadU16(&numLookups) {
		return 0, r.Error("lookup list: failed to read lookup count")
	}
	listEnd := 2 + int(numLookups)*2
	if listEnd > 0xffff {
		return 0, r.Error("lookup list: offsets exceed 64K")
	}

	offsets := make([]uint16, numLookups)
	for i := range offsets {
		if !sub.ReadU16(&offsets[i]) {
			return 0, r.Error("lookup list: failed to read offset %d", i)
		}
		if int(offsets[i]) < listEnd || int(offsets[i]) >= len(data) {
			return 0, r.Error("lookup list: bad lookup offset %d", offsets[i])
		}
	}

	ctx := &layoutContext{
		font:       f,
		numGlyphs:  f.NumGlyphs(),
		numLookups: numLookups,
	}
	for _, offset := range offsets {
		if err := parseLookup(r, data[offset:], ctx, parsers); err != nil {
			return 0, err
		}
	}
	return numLookups, nil
}
