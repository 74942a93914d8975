package ots

import (
	"golang.org/x/text/encoding/unicode"
)

// name - Naming Table
// https://learn.microsoft.com/en-us/typography/opentype/spec/name
//
// The naming table is required by the format but is of no structural
// interest to a rasterizer, and historically a popular place to hide
// oddities. The sanitizer therefore rewrites it wholesale: input records
// are decoded only for diagnostics, and the output is a canonical set of
// Windows/US-English records. The postscript name is taken from the CFF
// Name INDEX when the font carries one.

var utf16Decoder = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// NameTable regenerates the naming table in canonical form.
type NameTable struct {
	tableBase
	FamilyName string          // decoded from the input, diagnostics only
	nameIDs    map[uint16]bool // IDs present in the input
}

func newNameTable(font *Font) *NameTable {
	return &NameTable{
		tableBase: tableBase{font: font, tag: TagName},
		nameIDs:   make(map[uint16]bool),
	}
}

// IsValidNameID reports whether other tables may reference the given
// name ID. IDs 0 through 9 are accepted, although the canonical rewrite
// omits ID 7 (trademark); IDs seen in the input are also accepted since
// callers only warn on them.
func (t *NameTable) IsValidNameID(id uint16) bool {
	return id <= 9 || t.nameIDs[id]
}

func (t *NameTable) Parse(data []byte) error {
	table := NewBuffer(data)

	var version, count, stringOffset uint16
	if !table.ReadU16(&version) || !table.ReadU16(&count) || !table.ReadU16(&stringOffset) {
		return t.Error("failed to read table header")
	}
	if version > 1 {
		t.Warning("unknown table version %d", version)
	}

	// The input records feed diagnostics and cross-table name-ID checks
	// only; malformed records are skipped, never fatal — the table is
	// regenerated on output regardless.
	for i := 0; i < int(count); i++ {
		var platform, encoding, language, nameID, length, offset uint16
		if !table.ReadU16(&platform) || !table.ReadU16(&encoding) ||
			!table.ReadU16(&language) || !table.ReadU16(&nameID) ||
			!table.ReadU16(&length) || !table.ReadU16(&offset) {
			t.Warning("truncated name record %d", i)
			break
		}
		t.nameIDs[nameID] = true
		start := int(stringOffset) + int(offset)
		end := start + int(length)
		if end > len(data) {
			t.Warning("name record %d string out of bounds", i)
			continue
		}
		if nameID == 1 && t.FamilyName == "" &&
			platform == 3 && (encoding == 1 || encoding == 10) {
			if decoded, err := utf16Decoder.NewDecoder().Bytes(data[start:end]); err == nil {
				t.FamilyName = string(decoded)
				tracer().Debugf("name: font family is %q", t.FamilyName)
			}
		}
	}

	return nil
}

// canonicalNames returns the rewritten name strings by name ID; an empty
// entry is omitted from the output.
func (t *NameTable) canonicalNames() []string {
	postscript := "False"
	if cff := t.font.CFF(); cff != nil && cff.PostScriptName != "" {
		postscript = cff.PostScriptName
	}
	return []string{
		"Derived font data", // 0: copyright
		"OTS derived font",  // 1: family
		"Unspecified",       // 2: subfamily
		"UniqueID",          // 3: unique id
		"OTS derived font",  // 4: full name
		"Version 0.0",       // 5: version
		postscript,          // 6: postscript name
		"",                  // 7: trademark, omitted
		"OTS",               // 8: manufacturer
		"OTS",               // 9: designer
	}
}

func (t *NameTable) Serialize(s *Serializer) error {
	names := t.canonicalNames()
	numRecords := 0
	for _, n := range names {
		if n != "" {
			numRecords++
		}
	}

	if !s.WriteU16(0) || // version
		!s.WriteU16(uint16(numRecords)) ||
		!s.WriteU16(uint16(6+numRecords*12)) { // string storage offset
		return t.Error("failed to write table header")
	}

	offset := 0
	for id, n := range names {
		if n == "" {
			continue
		}
		length := len(n) * 2 // UTF-16BE, all strings are ASCII
		if !s.WriteU16(3) || // Windows
			!s.WriteU16(1) || // Unicode BMP
			!s.WriteU16(0x0409) || // US English
			!s.WriteU16(uint16(id)) ||
			!s.WriteU16(uint16(length)) ||
			!s.WriteU16(uint16(offset)) {
			return t.Error("failed to write name record %d", id)
		}
		offset += length
	}
	for _, n := range names {
		if n == "" {
			continue
		}
		for _, r := range n {
			if !s.WriteU16(uint16(r)) {
				return t.Error("failed to write name string")
			}
		}
	}
	return nil
}
