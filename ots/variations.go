package ots

// OpenType Variations Common Table Formats
// https://learn.microsoft.com/en-us/typography/opentype/spec/otvarcommonformats

// parseVariationRegionList validates the region list of an item
// variation store and returns the region count. Region coordinates are
// F2DOT14 design-space positions bounded to [-1.0, 1.0].
func parseVariationRegionList(r reporter, f *Font, data []byte) (uint16, error) {
	sub := NewBuffer(data)

	var axisCount, regionCount uint16
	if !sub.ReadU16(&axisCount) || !sub.ReadU16(&regionCount) {
		return 0, r.Error("variation region list: failed to read header")
	}

	fvar := f.Fvar()
	if fvar == nil {
		return 0, r.Error("variation region list: required fvar table is missing")
	}
	if axisCount != fvar.AxisCount {
		return 0, r.Error("variation region list: axis count %d does not match fvar %d",
			axisCount, fvar.AxisCount)
	}

	for i := 0; i < int(regionCount); i++ {
		for j := 0; j < int(axisCount); j++ {
			var start, peak, end int16
			if !sub.ReadS16(&start) || !sub.ReadS16(&peak) || !sub.ReadS16(&end) {
				return 0, r.Error("variation region list: failed to read region %d axis %d", i, j)
			}
			if start > peak || peak > end {
				return 0, r.Error("variation region list: region %d axis %d out of order", i, j)
			}
			if start < -0x4000 || end > 0x4000 {
				return 0, r.Error("variation region list: region %d axis %d out of range", i, j)
			}
			if (peak < 0 && end > 0) || (peak > 0 && start < 0) {
				return 0, r.Error("variation region list: region %d axis %d spans zero", i, j)
			}
		}
	}
	return regionCount, nil
}

func parseVariationDataSubtable(r reporter, data []byte, regionCount uint16) error {
	sub := NewBuffer(data)

	var itemCount, shortDeltaCount, regionIndexCount uint16
	if !sub.ReadU16(&itemCount) || !sub.ReadU16(&shortDeltaCount) ||
		!sub.ReadU16(&regionIndexCount) {
		return r.Error("item variation data: failed to read header")
	}

	for i := 0; i < int(regionIndexCount); i++ {
		var regionIndex uint16
		if !sub.ReadU16(&regionIndex) {
			return r.Error("item variation data: failed to read region index %d", i)
		}
		if regionIndex >= regionCount {
			return r.Error("item variation data: bad region index %d", regionIndex)
		}
	}

	if !sub.Skip(int(itemCount) * (int(shortDeltaCount) + int(regionIndexCount))) {
		return r.Error("item variation data: delta rows exceed table bounds")
	}
	return nil
}

// parseItemVariationStore validates an item variation store.
func parseItemVariationStore(r reporter, f *Font, data []byte) error {
	sub := NewBuffer(data)

	var format uint16
	var regionListOffset uint32
	var dataCount uint16
	if !sub.ReadU16(&format) || !sub.ReadU32(&regionListOffset) ||
		!sub.ReadU16(&dataCount) {
		return r.Error("item variation store: failed to read header")
	}
	if format != 1 {
		return r.Error("item variation store: unknown format %d", format)
	}

	if int64(regionListOffset) < int64(sub.Offset())+4*int64(dataCount) ||
		int(regionListOffset) > len(data) {
		return r.Error("item variation store: bad region list offset %d", regionListOffset)
	}

	regionCount, err := parseVariationRegionList(r, f, data[regionListOffset:])
	if err != nil {
		return err
	}

	for i := 0; i < int(dataCount); i++ {
		var offset uint32
		if !sub.ReadU32(&offset) {
			return r.Error("item variation store: failed to read subtable offset %d", i)
		}
		if int(offset) >= len(data) {
			return r.Error("item variation store: bad subtable offset %d", offset)
		}
		if err := parseVariationDataSubtable(r, data[offset:], regionCount); err != nil {
			return err
		}
	}
	return nil
}

// parseDeltaSetIndexMap validates a delta-set index map.
func parseDeltaSetIndexMap(r reporter, data []byte) error {
	sub := NewBuffer(data)

	var entryFormat, mapCount uint16
	if !sub.ReadU16(&entryFormat) || !sub.ReadU16(&mapCount) {
		return r.Error("delta set index map: failed to read header")
	}

	const mapEntrySizeMask = 0x0030
	entrySize := int((entryFormat&mapEntrySizeMask)>>4) + 1
	if !sub.Skip(entrySize * int(mapCount)) {
		return r.Error("delta set index map: entries exceed table bounds")
	}
	return nil
}
