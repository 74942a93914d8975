package ots

// OS/2 - OS/2 and Windows Metrics
// https://learn.microsoft.com/en-us/typography/opentype/spec/os2

// OS2Table is the parsed OS/2 table. Out-of-range classification values
// are normalized rather than rejected, matching what rasterizers do.
type OS2Table struct {
	tableBase
	Version          uint16
	AvgCharWidth     int16
	WeightClass      uint16
	WidthClass       uint16
	FsType           uint16
	SubscriptXSize   int16
	SubscriptYSize   int16
	SubscriptXOff    int16
	SubscriptYOff    int16
	SuperscriptXSize int16
	SuperscriptYSize int16
	SuperscriptXOff  int16
	SuperscriptYOff  int16
	StrikeoutSize    int16
	StrikeoutPos     int16
	FamilyClass      int16
	Panose           [10]uint8
	UnicodeRange     [4]uint32
	VendorID         Tag
	Selection        uint16
	FirstCharIndex   uint16
	LastCharIndex    uint16
	TypoAscender     int16
	TypoDescender    int16
	TypoLineGap      int16
	WinAscent        uint16
	WinDescent       uint16
	CodePageRange    [2]uint32
	XHeight          int16
	CapHeight        int16
	DefaultChar      uint16
	BreakChar        uint16
	MaxContext       uint16
	LowerPointSize   uint16
	UpperPointSize   uint16
}

func newOS2Table(font *Font) *OS2Table {
	return &OS2Table{tableBase: tableBase{font: font, tag: TagOS2}}
}

func (t *OS2Table) Parse(data []byte) error {
	table := NewBuffer(data)

	if !table.ReadU16(&t.Version) {
		return t.Error("failed to read table version")
	}
	if t.Version > 5 {
		return t.Error("unsupported table version %d", t.Version)
	}

	if !table.ReadS16(&t.AvgCharWidth) ||
		!table.ReadU16(&t.WeightClass) ||
		!table.ReadU16(&t.WidthClass) ||
		!table.ReadU16(&t.FsType) ||
		!table.ReadS16(&t.SubscriptXSize) ||
		!table.ReadS16(&t.SubscriptYSize) ||
		!table.ReadS16(&t.SubscriptXOff) ||
		!table.ReadS16(&t.SubscriptYOff) ||
		!table.ReadS16(&t.SuperscriptXSize) ||
		!table.ReadS16(&t.SuperscriptYSize) ||
		!table.ReadS16(&t.SuperscriptXOff) ||
		!table.ReadS16(&t.SuperscriptYOff) ||
		!table.ReadS16(&t.StrikeoutSize) ||
		!table.ReadS16(&t.StrikeoutPos) ||
		!table.ReadS16(&t.FamilyClass) {
		return t.Error("failed to read table fields")
	}

	if t.WeightClass < 100 || t.WeightClass > 900 || t.WeightClass%100 != 0 {
		t.Warning("bad weight class %d, normalizing to 400", t.WeightClass)
		t.WeightClass = 400
	}
	if t.WidthClass < 1 || t.WidthClass > 9 {
		t.Warning("bad width class %d, normalizing to 5", t.WidthClass)
		t.WidthClass = 5
	}
	// Mask fsType to the defined embedding bits.
	t.FsType &= 0x030f

	for i := range t.Panose {
		if !table.ReadU8(&t.Panose[i]) {
			return t.Error("failed to read PANOSE classification")
		}
	}
	for i := range t.UnicodeRange {
		if !table.ReadU32(&t.UnicodeRange[i]) {
			return t.Error("failed to read Unicode range %d", i)
		}
	}
	if !table.ReadTag(&t.VendorID) {
		return t.Error("failed to read vendor ID")
	}

	if !table.ReadU16(&t.Selection) ||
		!table.ReadU16(&t.FirstCharIndex) ||
		!table.ReadU16(&t.LastCharIndex) ||
		!table.ReadS16(&t.TypoAscender) ||
		!table.ReadS16(&t.TypoDescender) ||
		!table.ReadS16(&t.TypoLineGap) ||
		!table.ReadU16(&t.WinAscent) ||
		!table.ReadU16(&t.WinDescent) {
		return t.Error("failed to read metrics fields")
	}
	// Bits 7..15 of fsSelection are reserved below version 4.
	if t.Version < 4 {
		t.Selection &= 0x007f
	} else {
		t.Selection &= 0x03ff
	}

	if t.Version < 1 {
		return nil
	}
	if !table.ReadU32(&t.CodePageRange[0]) || !table.ReadU32(&t.CodePageRange[1]) {
		return t.Error("failed to read code page ranges")
	}

	if t.Version < 2 {
		return nil
	}
	if !table.ReadS16(&t.XHeight) ||
		!table.ReadS16(&t.CapHeight) ||
		!table.ReadU16(&t.DefaultChar) ||
		!table.ReadU16(&t.BreakChar) ||
		!table.ReadU16(&t.MaxContext) {
		return t.Error("failed to read version 2 fields")
	}

	if t.Version < 5 {
		return nil
	}
	if !table.ReadU16(&t.LowerPointSize) || !table.ReadU16(&t.UpperPointSize) {
		return t.Error("failed to read optical point sizes")
	}
	if t.LowerPointSize > t.UpperPointSize {
		return t.Error("bad optical point size range %d > %d",
			t.LowerPointSize, t.UpperPointSize)
	}

	return nil
}

func (t *OS2Table) Serialize(s *Serializer) error {
	ok := s.WriteU16(t.Version) &&
		s.WriteS16(t.AvgCharWidth) &&
		s.WriteU16(t.WeightClass) &&
		s.WriteU16(t.WidthClass) &&
		s.WriteU16(t.FsType) &&
		s.WriteS16(t.SubscriptXSize) &&
		s.WriteS16(t.SubscriptYSize) &&
		s.WriteS16(t.SubscriptXOff) &&
		s.WriteS16(t.SubscriptYOff) &&
		s.WriteS16(t.SuperscriptXSize) &&
		s.WriteS16(t.SuperscriptYSize) &&
		s.WriteS16(t.SuperscriptXOff) &&
		s.WriteS16(t.SuperscriptYOff) &&
		s.WriteS16(t.StrikeoutSize) &&
		s.WriteS16(t.StrikeoutPos) &&
		s.WriteS16(t.FamilyClass)
	for i := range t.Panose {
		ok = ok && s.WriteU8(t.Panose[i])
	}
	for i := range t.UnicodeRange {
		ok = ok && s.WriteU32(t.UnicodeRange[i])
	}
	ok = ok && s.WriteTag(t.VendorID) &&
		s.WriteU16(t.Selection) &&
		s.WriteU16(t.FirstCharIndex) &&
		s.WriteU16(t.LastCharIndex) &&
		s.WriteS16(t.TypoAscender) &&
		s.WriteS16(t.TypoDescender) &&
		s.WriteS16(t.TypoLineGap) &&
		s.WriteU16(t.WinAscent) &&
		s.WriteU16(t.WinDescent)
	if t.Version >= 1 {
		ok = ok && s.WriteU32(t.CodePageRange[0]) && s.WriteU32(t.CodePageRange[1])
	}
	if t.Version >= 2 {
		ok = ok && s.WriteS16(t.XHeight) &&
			s.WriteS16(t.CapHeight) &&
			s.WriteU16(t.DefaultChar) &&
			s.WriteU16(t.BreakChar) &&
			s.WriteU16(t.MaxContext)
	}
	if t.Version >= 5 {
		ok = ok && s.WriteU16(t.LowerPointSize) && s.WriteU16(t.UpperPointSize)
	}
	if !ok {
		return t.Error("failed to write table")
	}
	return nil
}
