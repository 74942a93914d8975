package ots

// head - Font Header
// https://learn.microsoft.com/en-us/typography/opentype/spec/head

const headMagic = 0x5F0F3CF5

// HeadTable is the parsed font header. IndexToLocFormat may be rewritten
// by the glyf parser when repacked glyph offsets no longer fit 16 bits.
type HeadTable struct {
	tableBase
	Revision         uint32
	Flags            uint16
	UnitsPerEm       uint16
	Created          uint64
	Modified         uint64
	XMin, YMin       int16
	XMax, YMax       int16
	MacStyle         uint16
	MinPPEM          uint16
	IndexToLocFormat int16
}

func newHeadTable(font *Font) *HeadTable {
	return &HeadTable{tableBase: tableBase{font: font, tag: TagHead}}
}

func (t *HeadTable) Parse(data []byte) error {
	table := NewBuffer(data)

	var version uint32
	if !table.ReadU32(&version) || !table.ReadU32(&t.Revision) {
		return t.Error("failed to read head header")
	}
	if version>>16 != 1 {
		return t.Error("bad table version %#x", version)
	}

	// The checksum adjustment is recomputed on output; skip it.
	if !table.Skip(4) {
		return t.Error("failed to skip checksum adjustment")
	}

	var magic uint32
	if !table.ReadU32(&magic) || magic != headMagic {
		return t.Error("bad magic number %#x", magic)
	}

	if !table.ReadU16(&t.Flags) {
		return t.Error("failed to read flags")
	}
	// Mask to bits 0..4 and 11..13; the rest are reserved or Apple-only.
	t.Flags &= 0x381f

	if !table.ReadU16(&t.UnitsPerEm) {
		return t.Error("failed to read units per em")
	}
	if t.UnitsPerEm < 16 || t.UnitsPerEm > 16384 {
		return t.Error("bad units per em %d", t.UnitsPerEm)
	}

	if !table.ReadR64(&t.Created) || !table.ReadR64(&t.Modified) {
		return t.Error("failed to read font dates")
	}

	if !table.ReadS16(&t.XMin) || !table.ReadS16(&t.YMin) ||
		!table.ReadS16(&t.XMax) || !table.ReadS16(&t.YMax) {
		return t.Error("failed to read font bounding box")
	}
	if t.XMin > t.XMax {
		return t.Error("bad x dimension in bounding box (%d, %d)", t.XMin, t.XMax)
	}
	if t.YMin > t.YMax {
		return t.Error("bad y dimension in bounding box (%d, %d)", t.YMin, t.YMax)
	}

	if !table.ReadU16(&t.MacStyle) {
		return t.Error("failed to read mac style")
	}
	t.MacStyle &= 0x7f // bits 0..6

	if !table.ReadU16(&t.MinPPEM) {
		return t.Error("failed to read lowest rec ppem")
	}

	// Font direction hint is deprecated; accepted unchecked.
	if !table.Skip(2) {
		return t.Error("failed to skip font direction hint")
	}

	if !table.ReadS16(&t.IndexToLocFormat) {
		return t.Error("failed to read index to loc format")
	}
	if t.IndexToLocFormat < 0 || t.IndexToLocFormat > 1 {
		return t.Error("bad index to loc format %d", t.IndexToLocFormat)
	}

	var glyphDataFormat int16
	if !table.ReadS16(&glyphDataFormat) || glyphDataFormat != 0 {
		return t.Error("bad glyph data format %d", glyphDataFormat)
	}

	return nil
}

func (t *HeadTable) Serialize(s *Serializer) error {
	// The checksum adjustment is written as zero here; the container
	// driver seeks back and fills it in after the whole file is summed.
	if !s.WriteU32(0x00010000) ||
		!s.WriteU32(t.Revision) ||
		!s.WriteU32(0) ||
		!s.WriteU32(headMagic) ||
		!s.WriteU16(t.Flags) ||
		!s.WriteU16(t.UnitsPerEm) ||
		!s.WriteR64(t.Created) ||
		!s.WriteR64(t.Modified) ||
		!s.WriteS16(t.XMin) ||
		!s.WriteS16(t.YMin) ||
		!s.WriteS16(t.XMax) ||
		!s.WriteS16(t.YMax) ||
		!s.WriteU16(t.MacStyle) ||
		!s.WriteU16(t.MinPPEM) ||
		!s.WriteS16(2) ||
		!s.WriteS16(t.IndexToLocFormat) ||
		!s.WriteS16(0) {
		return t.Error("failed to write table")
	}
	return nil
}
