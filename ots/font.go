package ots

import (
	"github.com/emirpasic/gods/maps/treemap"
)

// Font is the root aggregate for one logical font: the sfnt version tag
// and the registry of parsed tables, kept sorted by tag so that
// serialization emits directory records in the order the format
// requires. In a collection, tables parsed by an earlier member may be
// attached to a later member with a reuse mark; such a table is owned by
// its first appearance.
type Font struct {
	ctx     *Context
	version uint32 // sfnt scaler type
	tables  *treemap.Map
	reused  map[Tag]bool

	// dropVariations strips fvar/gvar from the output after a failure
	// inside variation data; the default instance stays usable.
	dropVariations bool
}

func tagComparator(a, b interface{}) int {
	ta, tb := a.(Tag), b.(Tag)
	switch {
	case ta < tb:
		return -1
	case ta > tb:
		return 1
	}
	return 0
}

func newFont(ctx *Context, version uint32) *Font {
	return &Font{
		ctx:     ctx,
		version: version,
		tables:  treemap.NewWith(tagComparator),
		reused:  make(map[Tag]bool),
	}
}

// Version returns the sfnt scaler type of the font.
func (f *Font) Version() uint32 { return f.version }

// AddTable registers a parsed table. Insertion is idempotent per tag;
// the first table registered for a tag wins.
func (f *Font) AddTable(t Table) {
	if _, ok := f.tables.Get(t.Tag()); ok {
		return
	}
	f.tables.Put(t.Tag(), t)
}

// HasTable reports whether a table is registered for tag.
func (f *Font) HasTable(tag Tag) bool {
	_, ok := f.tables.Get(tag)
	return ok
}

// Table returns the table registered for tag, or nil.
func (f *Font) Table(tag Tag) Table {
	if t, ok := f.tables.Get(tag); ok {
		return t.(Table)
	}
	return nil
}

// MarkReused flags a table as borrowed from a sibling font of a
// collection.
func (f *Font) MarkReused(tag Tag) {
	f.reused[tag] = true
}

// IsReused reports whether the table for tag is owned by an earlier
// member of the enclosing collection.
func (f *Font) IsReused(tag Tag) bool {
	return f.reused[tag]
}

// NumTables returns the number of registered tables.
func (f *Font) NumTables() int {
	return f.tables.Size()
}

// EachTable calls visit for every registered table in ascending tag
// order.
func (f *Font) EachTable(visit func(t Table)) {
	f.tables.Each(func(key, value interface{}) {
		visit(value.(Table))
	})
}

// Typed accessors. Each returns nil when the table is absent or was
// registered under a different concrete type (which cannot happen for
// tables the driver itself constructs).

// Head returns the parsed head table.
func (f *Font) Head() *HeadTable {
	t, _ := f.Table(TagHead).(*HeadTable)
	return t
}

// Maxp returns the parsed maxp table.
func (f *Font) Maxp() *MaxpTable {
	t, _ := f.Table(TagMaxp).(*MaxpTable)
	return t
}

// Loca returns the parsed loca table.
func (f *Font) Loca() *LocaTable {
	t, _ := f.Table(TagLoca).(*LocaTable)
	return t
}

// Glyf returns the parsed glyf table.
func (f *Font) Glyf() *GlyfTable {
	t, _ := f.Table(TagGlyf).(*GlyfTable)
	return t
}

// Hhea returns the parsed hhea table.
func (f *Font) Hhea() *MetricsHeaderTable {
	t, _ := f.Table(TagHhea).(*MetricsHeaderTable)
	return t
}

// Vhea returns the parsed vhea table.
func (f *Font) Vhea() *MetricsHeaderTable {
	t, _ := f.Table(TagVhea).(*MetricsHeaderTable)
	return t
}

// CFF returns the parsed CFF table (version 1 or 2).
func (f *Font) CFF() *CFFTable {
	if t, ok := f.Table(TagCFF).(*CFFTable); ok {
		return t
	}
	t, _ := f.Table(TagCFF2).(*CFFTable)
	return t
}

// CPAL returns the parsed CPAL table.
func (f *Font) CPAL() *CPALTable {
	t, _ := f.Table(TagCPAL).(*CPALTable)
	return t
}

// EBDT returns the parsed EBDT table.
func (f *Font) EBDT() *EBDTTable {
	t, _ := f.Table(TagEBDT).(*EBDTTable)
	return t
}

// GDEF returns the parsed GDEF table.
func (f *Font) GDEF() *GDEFTable {
	t, _ := f.Table(TagGDEF).(*GDEFTable)
	return t
}

// Fvar returns the parsed fvar table.
func (f *Font) Fvar() *FvarTable {
	t, _ := f.Table(TagFvar).(*FvarTable)
	return t
}

// Name returns the parsed name table.
func (f *Font) Name() *NameTable {
	t, _ := f.Table(TagName).(*NameTable)
	return t
}

// NumGlyphs returns maxp.numGlyphs, or 0 if maxp is absent.
func (f *Font) NumGlyphs() uint16 {
	if maxp := f.Maxp(); maxp != nil {
		return maxp.NumGlyphs
	}
	return 0
}

// checkRequiredTables enforces the cross-table presence invariants:
// head and maxp accompany glyf; hhea and hmtx come in pairs, as do vhea
// and vmtx; exactly one of glyf and CFF/CFF2 carries the outlines.
func (f *Font) checkRequiredTables() error {
	missing := func(tag Tag) error {
		f.ctx.message(0, "%s: required table missing", tag)
		return ParseError{Table: tag, Reason: "required table missing"}
	}
	if f.HasTable(TagGlyf) {
		if !f.HasTable(TagHead) {
			return missing(TagHead)
		}
		if !f.HasTable(TagMaxp) {
			return missing(TagMaxp)
		}
	}
	if f.HasTable(TagHhea) != f.HasTable(TagHmtx) {
		if f.HasTable(TagHhea) {
			return missing(TagHmtx)
		}
		return missing(TagHhea)
	}
	if f.HasTable(TagVhea) != f.HasTable(TagVmtx) {
		if f.HasTable(TagVhea) {
			return missing(TagVmtx)
		}
		return missing(TagVhea)
	}
	hasGlyf := f.HasTable(TagGlyf)
	hasCFF := f.HasTable(TagCFF) || f.HasTable(TagCFF2)
	if hasGlyf == hasCFF {
		reason := "font carries neither glyf nor CFF outlines"
		if hasGlyf {
			reason = "font carries both glyf and CFF outlines"
		}
		f.ctx.message(0, "%s", reason)
		return ParseError{Table: TagGlyf, Reason: reason}
	}
	return nil
}
