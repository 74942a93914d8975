package ots

import "fmt"

// Table is the capability set every parsed font table provides. A table
// is constructed against its font, parses its byte span exactly once,
// and later serializes its sanitized form.
type Table interface {
	Tag() Tag
	Parse(data []byte) error
	ShouldSerialize() bool
	Serialize(s *Serializer) error
}

// ParseError is the error type returned by table parsers. It names the
// failing table and the abstract reason. It has no separate offset field;
// where an offset is reported, it is part of the reason text.
type ParseError struct {
	Table  Tag
	Reason string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Table, e.Reason)
}

// tableBase carries what every table type shares: its tag and the
// enclosing font, through which sibling tables and the policy context
// are reached.
type tableBase struct {
	font *Font
	tag  Tag
}

func (t *tableBase) Tag() Tag { return t.tag }

// Font returns the enclosing font.
func (t *tableBase) Font() *Font { return t.font }

// ShouldSerialize is true for almost every table; tables with
// conditional output (cvt, vmtx, ...) override it.
func (t *tableBase) ShouldSerialize() bool { return true }

// Error logs through the context message sink and returns the error the
// parser propagates. The returned error aborts the enclosing parse.
func (t *tableBase) Error(format string, args ...interface{}) error {
	reason := fmt.Sprintf(format, args...)
	t.font.ctx.message(0, "%s: %s", t.tag, reason)
	return ParseError{Table: t.tag, Reason: reason}
}

// Warning logs a non-fatal diagnostic through the context message sink.
func (t *tableBase) Warning(format string, args ...interface{}) {
	t.font.ctx.message(1, "%s: %s", t.tag, fmt.Sprintf(format, args...))
}

// --- Passthrough ------------------------------------------------------------

// passthruTable copies a table through without structural validation.
// It backs the ActionPassthru policy, used for tables the sanitizer does
// not interpret (e.g. the Graphite set) when the caller wants them kept.
type passthruTable struct {
	tableBase
	data []byte
}

func newPassthruTable(font *Font, tag Tag) *passthruTable {
	return &passthruTable{tableBase: tableBase{font: font, tag: tag}}
}

func (t *passthruTable) Parse(data []byte) error {
	t.data = data
	return nil
}

func (t *passthruTable) Serialize(s *Serializer) error {
	if !s.Write(t.data) {
		return t.Error("failed to write table")
	}
	return nil
}
