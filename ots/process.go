package ots

import "sort"

// Container driver: sfnt/TTC/WOFF/WOFF2 directory decode, dependency
// ordered parsing, and serialization to a clean sfnt.

// checksumMagic is the constant the whole-file checksum must reach via
// head.checksumAdjustment.
const checksumMagic = 0xb1b0afba

// tableConstructors maps each recognized tag to its table constructor.
// Tags absent from this catalog are dropped from the output (unless the
// policy passes them through).
var tableConstructors = map[Tag]func(*Font) Table{
	TagHead: func(f *Font) Table { return newHeadTable(f) },
	TagMaxp: func(f *Font) Table { return newMaxpTable(f) },
	TagLoca: func(f *Font) Table { return newLocaTable(f) },
	TagGlyf: func(f *Font) Table { return newGlyfTable(f) },
	TagCmap: func(f *Font) Table { return newCmapTable(f) },
	TagHhea: func(f *Font) Table { return newMetricsHeaderTable(f, TagHhea) },
	TagVhea: func(f *Font) Table { return newMetricsHeaderTable(f, TagVhea) },
	TagHmtx: func(f *Font) Table { return newMetricsTable(f, TagHmtx) },
	TagVmtx: func(f *Font) Table { return newMetricsTable(f, TagVmtx) },
	TagOS2:  func(f *Font) Table { return newOS2Table(f) },
	TagPost: func(f *Font) Table { return newPostTable(f) },
	TagName: func(f *Font) Table { return newNameTable(f) },
	TagCvt:  func(f *Font) Table { return newHintingTable(f, TagCvt) },
	TagFpgm: func(f *Font) Table { return newHintingTable(f, TagFpgm) },
	TagPrep: func(f *Font) Table { return newHintingTable(f, TagPrep) },
	TagCFF:  func(f *Font) Table { return newCFFTable(f, TagCFF) },
	TagCFF2: func(f *Font) Table { return newCFFTable(f, TagCFF2) },
	TagVORG: func(f *Font) Table { return newVorgTable(f) },
	TagKern: func(f *Font) Table { return newKernTable(f) },
	TagGasp: func(f *Font) Table { return newGaspTable(f) },
	TagHdmx: func(f *Font) Table { return newHdmxTable(f) },
	TagLTSH: func(f *Font) Table { return newLtshTable(f) },
	TagVDMX: func(f *Font) Table { return newVdmxTable(f) },
	TagDSIG: func(f *Font) Table { return newDsigTable(f) },
	TagFvar: func(f *Font) Table { return newFvarTable(f) },
	TagGvar: func(f *Font) Table { return newGvarTable(f) },
	TagGDEF: func(f *Font) Table { return newGDEFTable(f) },
	TagGSUB: func(f *Font) Table { return newGSUBTable(f) },
	TagGPOS: func(f *Font) Table { return newGPOSTable(f) },
	TagBASE: func(f *Font) Table { return newBaseTable(f) },
	TagJSTF: func(f *Font) Table { return newJstfTable(f) },
	TagMATH: func(f *Font) Table { return newMathTable(f) },
	TagCPAL: func(f *Font) Table { return newCPALTable(f) },
	TagCOLR: func(f *Font) Table { return newCOLRTable(f) },
	TagEBDT: func(f *Font) Table { return newEBDTTable(f) },
	TagEBLC: func(f *Font) Table { return newEBLCTable(f) },
	TagEBSC: func(f *Font) Table { return newEbscTable(f) },
}

// parseOrder is the fixed topological ordering of table parsing; a
// table's parser may rely on every earlier table being complete.
var parseOrder = []Tag{
	TagHead, TagMaxp, TagLoca, TagCmap,
	TagHhea, TagHmtx, TagVhea, TagVmtx,
	TagOS2, TagPost, TagName,
	TagFvar, TagGvar,
	TagCFF, TagCFF2, TagGlyf,
	TagGDEF, TagGSUB, TagGPOS, TagBASE, TagJSTF, TagMATH,
	TagCPAL, TagCOLR,
	TagEBDT, TagEBLC, TagEBSC,
	TagKern, TagVORG, TagLTSH, TagVDMX, TagHdmx, TagGasp, TagDSIG,
	TagCvt, TagFpgm, TagPrep,
}

var parseRank = func() map[Tag]int {
	rank := make(map[Tag]int, len(parseOrder))
	for i, tag := range parseOrder {
		rank[tag] = i
	}
	return rank
}()

// tableRecord is one entry of an sfnt table directory.
type tableRecord struct {
	tag      Tag
	checksum uint32
	offset   uint32
	length   uint32
}

// Process sanitizes one font. The input may be an sfnt, a collection
// (its first member is processed), a WOFF container, or — when enabled
// on the context — a WOFF2 container. On success a clean sfnt has been
// written to out; on failure the stream contents are indeterminate and
// must be discarded.
func Process(out OTSStream, data []byte, ctx *Context) error {
	return ProcessFont(out, data, ctx, -1)
}

// ProcessFont sanitizes the font at the given index of a collection;
// index -1 selects the first member. For non-collection inputs the
// index must be -1 or 0.
func ProcessFont(out OTSStream, data []byte, ctx *Context, index int) error {
	if len(data) < 4 {
		ctx.message(0, "file shorter than a container signature")
		return ParseError{Reason: "file too short"}
	}
	signature := uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])

	switch signature {
	case woffSignature:
		sfnt, err := decodeWOFF(ctx, data)
		if err != nil {
			return err
		}
		data = sfnt
	case woff2Signature:
		if ctx == nil || !ctx.WOFF2Enabled {
			ctx.message(0, "WOFF2 input is not enabled")
			return ParseError{Reason: "WOFF2 input is not enabled"}
		}
		sfnt, err := decodeWOFF2(ctx, data)
		if err != nil {
			return err
		}
		data = sfnt
	case ttcTag:
		return processCollection(out, data, ctx, index)
	}

	if index > 0 {
		ctx.message(0, "font index %d into a single-font file", index)
		return ParseError{Reason: "font index into a single-font file"}
	}
	font, err := parseSingleFont(ctx, data, 0)
	if err != nil {
		return err
	}
	return serializeFont(out, font, ctx)
}

// processCollection parses every member of a TTC in order, reusing
// tables shared between members, then serializes the selected member as
// a plain sfnt.
func processCollection(out OTSStream, data []byte, ctx *Context, index int) error {
	fail := func(format string, args ...interface{}) error {
		ctx.message(0, format, args...)
		return ParseError{Reason: "bad collection header"}
	}

	table := NewBuffer(data)
	var signature, version, numFonts uint32
	if !table.ReadU32(&signature) || !table.ReadU32(&version) || !table.ReadU32(&numFonts) {
		return fail("failed to read collection header")
	}
	if version != 0x00010000 && version != 0x00020000 {
		return fail("bad collection version %#x", version)
	}
	if numFonts == 0 || uint64(numFonts) > uint64(len(data))/4 {
		return fail("bad collection font count %d", numFonts)
	}
	if index >= int(numFonts) {
		return fail("font index %d out of range, collection has %d fonts", index, numFonts)
	}
	if index < 0 {
		index = 0
	}

	offsets := make([]uint32, numFonts)
	for i := range offsets {
		if !table.ReadU32(&offsets[i]) {
			return fail("failed to read collection offset %d", i)
		}
		if int64(offsets[i])+12 > int64(len(data)) {
			return fail("collection offset %d out of bounds", offsets[i])
		}
	}
	// Version 2 headers carry a DSIG reference that is dropped with the
	// rest of the signature machinery.
	if version == 0x00020000 {
		var dsigTag, dsigLength, dsigOffset uint32
		if !table.ReadU32(&dsigTag) || !table.ReadU32(&dsigLength) || !table.ReadU32(&dsigOffset) {
			return fail("failed to read collection signature header")
		}
	}

	// Tables shared between members are parsed once, owned by the first
	// member that names them, and reused by reference afterwards.
	shared := make(map[uint32]Table)
	var selected *Font
	for i := uint32(0); i < numFonts; i++ {
		font, err := parseFontAt(ctx, data, offsets[i], shared)
		if err != nil {
			return err
		}
		if int(i) == index {
			selected = font
		}
	}
	return serializeFont(out, selected, ctx)
}

func parseSingleFont(ctx *Context, data []byte, headerOffset uint32) (*Font, error) {
	return parseFontAt(ctx, data, headerOffset, nil)
}

// parseFontAt decodes the sfnt header and table directory at
// headerOffset and parses every recognized table in dependency order.
// shared, when non-nil, maps file offsets of already-parsed tables for
// collection reuse.
func parseFontAt(ctx *Context, data []byte, headerOffset uint32,
	shared map[uint32]Table) (*Font, error) {

	fail := func(format string, args ...interface{}) error {
		ctx.message(0, format, args...)
		return ParseError{Reason: "bad font header"}
	}

	table := NewBuffer(data)
	if !table.SetOffset(int(headerOffset)) {
		return nil, fail("font header offset %d out of bounds", headerOffset)
	}

	var version uint32
	var numTables, searchRange, entrySelector, rangeShift uint16
	if !table.ReadU32(&version) || !table.ReadU16(&numTables) ||
		!table.ReadU16(&searchRange) || !table.ReadU16(&entrySelector) ||
		!table.ReadU16(&rangeShift) {
		return nil, fail("failed to read font header")
	}
	switch version {
	case sfntVersionTrueType, sfntVersionOTTO, sfntVersionAppleTT, sfntVersionTyp1:
	default:
		return nil, fail("unsupported font type %#x", version)
	}
	if numTables == 0 || int64(numTables)*16 > int64(len(data))-int64(table.Offset()) {
		return nil, fail("bad table count %d", numTables)
	}
	// The binary search fields are recomputed on output, never trusted.
	if sr, es, rs := searchParams(int(numTables), 16); searchRange != sr ||
		entrySelector != es || rangeShift != rs {
		ctx.message(1, "binary search header fields are inconsistent")
	}

	type dirEntry struct {
		record tableRecord
		data   []byte
	}
	entries := make(map[Tag]dirEntry, numTables)
	order := make([]tableRecord, 0, numTables)
	var prevTag Tag
	for i := 0; i < int(numTables); i++ {
		var rec tableRecord
		if !table.ReadTag(&rec.tag) || !table.ReadU32(&rec.checksum) ||
			!table.ReadU32(&rec.offset) || !table.ReadU32(&rec.length) {
			return nil, fail("failed to read table record %d", i)
		}
		if i > 0 && rec.tag <= prevTag {
			return nil, fail("table directory not strictly sorted at %s", rec.tag)
		}
		prevTag = rec.tag
		if rec.offset%4 != 0 {
			return nil, fail("table %s offset %d is not 4-byte aligned", rec.tag, rec.offset)
		}
		end := uint64(rec.offset) + uint64(rec.length)
		if end > uint64(len(data)) {
			return nil, fail("table %s bounds [%d:%d] exceed file size %d",
				rec.tag, rec.offset, end, len(data))
		}
		entries[rec.tag] = dirEntry{record: rec, data: data[rec.offset:end]}
		order = append(order, rec)
	}

	// Table payloads must not overlap one another or the directory.
	sorted := make([]tableRecord, len(order))
	copy(sorted, order)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].offset < sorted[j].offset })
	dirEnd := uint64(headerOffset) + 12 + uint64(numTables)*16
	prevEnd := dirEnd
	for _, rec := range sorted {
		if rec.length == 0 {
			continue
		}
		if uint64(rec.offset) < prevEnd && uint64(rec.offset) >= uint64(headerOffset) {
			return nil, fail("table %s overlaps the preceding table", rec.tag)
		}
		if end := uint64(rec.offset) + uint64(rec.length); end > prevEnd {
			prevEnd = end
		}
	}

	font := newFont(ctx, version)

	for _, tag := range parseOrder {
		entry, present := entries[tag]
		if !present {
			continue
		}
		if err := parseTableEntry(ctx, font, tag, entry.record, entry.data, shared); err != nil {
			return nil, err
		}
	}
	// Tables outside the dependency list: recognized constructors do
	// not exist for them, so only policy actions apply.
	for _, rec := range order {
		if _, known := parseRank[rec.tag]; known {
			continue
		}
		entry := entries[rec.tag]
		if err := parseTableEntry(ctx, font, rec.tag, entry.record, entry.data, shared); err != nil {
			return nil, err
		}
	}

	// The naming table is regenerated even when the input has none.
	if !font.HasTable(TagName) {
		font.AddTable(newNameTable(font))
	}

	if err := font.checkRequiredTables(); err != nil {
		return nil, err
	}
	return font, nil
}

func parseTableEntry(ctx *Context, font *Font, tag Tag, rec tableRecord,
	data []byte, shared map[uint32]Table) error {

	switch ctx.actionFor(tag) {
	case ActionDrop:
		tracer().Debugf("dropping table %s by policy", tag)
		return nil
	case ActionPassthru:
		t := newPassthruTable(font, tag)
		if err := t.Parse(data); err != nil {
			return err
		}
		font.AddTable(t)
		return nil
	}

	construct, recognized := tableConstructors[tag]
	if !recognized {
		ctx.message(1, "%s: dropping unrecognized table", tag)
		return nil
	}

	if shared != nil {
		if t, ok := shared[rec.offset]; ok && t.Tag() == tag {
			font.AddTable(t)
			font.MarkReused(tag)
			return nil
		}
	}

	t := construct(font)
	if err := t.Parse(data); err != nil {
		return err
	}
	font.AddTable(t)
	if shared != nil {
		shared[rec.offset] = t
	}
	return nil
}

// searchParams computes the binary-search header fields for a directory
// of n entries of the given unit size.
func searchParams(n, unit int) (searchRange, entrySelector, rangeShift uint16) {
	sr := 1
	es := 0
	for sr*2 <= n {
		sr *= 2
		es++
	}
	return uint16(sr * unit), uint16(es), uint16(n*unit - sr*unit)
}

// serializeFont writes the font as a clean sfnt: two passes, the first
// to a counting sink for table lengths, the second for real, with every
// table 4-byte padded and checksummed, and head.checksumAdjustment
// fixed up last.
func serializeFont(out OTSStream, font *Font, ctx *Context) error {
	fail := func(format string, args ...interface{}) error {
		ctx.message(0, format, args...)
		return ParseError{Reason: "serialization failed"}
	}

	var tables []Table
	font.EachTable(func(t Table) {
		if t.ShouldSerialize() {
			tables = append(tables, t)
		}
	})
	if len(tables) == 0 {
		return fail("no tables to serialize")
	}

	// First pass: learn each table's length.
	records := make([]tableRecord, len(tables))
	for i, t := range tables {
		counter := NewCountingStream()
		if err := t.Serialize(NewSerializer(counter)); err != nil {
			return err
		}
		records[i] = tableRecord{tag: t.Tag(), length: uint32(counter.Length())}
	}

	// Lay out the directory: tables follow the records, in tag order,
	// each padded to a 4-byte boundary.
	headerSize := uint32(12 + 16*len(tables))
	offset := headerSize
	for i := range records {
		records[i].offset = offset
		offset += (records[i].length + 3) &^ 3
	}

	version := uint32(sfntVersionTrueType)
	if font.CFF() != nil {
		version = sfntVersionOTTO
	}

	s := NewSerializer(out)
	searchRange, entrySelector, rangeShift := searchParams(len(tables), 16)
	if !s.WriteU32(version) ||
		!s.WriteU16(uint16(len(tables))) ||
		!s.WriteU16(searchRange) ||
		!s.WriteU16(entrySelector) ||
		!s.WriteU16(rangeShift) {
		return fail("failed to write font header")
	}
	// Placeholder directory; rewritten once checksums are known.
	for range records {
		if !s.Pad(16) {
			return fail("failed to reserve table directory")
		}
	}

	var headOffset int64 = -1
	for i, t := range tables {
		if s.Tell() != int64(records[i].offset) {
			return fail("table %s offset drifted during serialization", records[i].tag)
		}
		if records[i].tag == TagHead {
			headOffset = s.Tell()
		}
		s.ResetChecksum()
		if err := t.Serialize(s); err != nil {
			return err
		}
		if s.Tell() != int64(records[i].offset)+int64(records[i].length) {
			return fail("table %s changed size between passes", records[i].tag)
		}
		records[i].checksum = s.Checksum()
		if !s.PadToAlignment(4) {
			return fail("failed to pad table %s", records[i].tag)
		}
	}
	fileEnd := s.Tell()

	// Rewrite the directory with the final checksums.
	if !s.Seek(12) {
		return fail("failed to seek to table directory")
	}
	for _, rec := range records {
		if !s.WriteTag(rec.tag) || !s.WriteU32(rec.checksum) ||
			!s.WriteU32(rec.offset) || !s.WriteU32(rec.length) {
			return fail("failed to write directory record for %s", rec.tag)
		}
	}

	// Whole-file checksum: header and directory words summed
	// arithmetically, plus every table checksum (padding contributes
	// nothing).
	total := version
	total += uint32(len(tables))<<16 | uint32(searchRange)
	total += uint32(entrySelector)<<16 | uint32(rangeShift)
	for _, rec := range records {
		// Each record contributes its four directory words; the table
		// content itself sums to the checksum once more.
		total += uint32(rec.tag) + rec.checksum + rec.offset + rec.length
		total += rec.checksum
	}

	if headOffset >= 0 {
		adjustment := checksumMagic - total
		if !s.Seek(headOffset + 8) {
			return fail("failed to seek to checksum adjustment")
		}
		if !s.WriteU32(adjustment) {
			return fail("failed to write checksum adjustment")
		}
	}
	if !s.Seek(fileEnd) {
		return fail("failed to restore stream position")
	}
	return nil
}
