package ots

// TableAction tells the container driver what to do with one table of the
// incoming font.
type TableAction int

const (
	// ActionDefault runs the built-in parser and sanitizer for the tag.
	ActionDefault TableAction = iota
	// ActionSanitize is an alias for ActionDefault.
	ActionSanitize
	// ActionPassthru copies the table bytes verbatim, bypassing validation.
	ActionPassthru
	// ActionDrop removes the table from the output.
	ActionDrop
)

// MessageFunc receives diagnostics from the sanitizer. Level 0 is an
// error, levels 1 and up are warnings.
type MessageFunc func(level int, format string, args ...interface{})

// TableActionFunc maps a table tag to the action to take for it.
type TableActionFunc func(tag Tag) TableAction

// Context carries the caller-supplied policy for one or more Process
// calls. A Context is safe for concurrent use by multiple sanitizations
// as long as its callbacks are.
type Context struct {
	// Message receives errors (level 0) and warnings (level >= 1).
	// The zero value routes everything to the package tracer.
	Message MessageFunc

	// TableAction decides per tag whether to sanitize, pass through or
	// drop a table. The zero value sanitizes everything.
	TableAction TableActionFunc

	// WOFF2Enabled accepts 'wOF2' input containers.
	WOFF2Enabled bool

	// DropColorBitmapTables removes CBDT/CBLC/sbix from the output.
	DropColorBitmapTables bool
}

// NewContext returns a Context with default policy: all diagnostics go
// to the package tracer, every table is sanitized, WOFF2 is disabled.
func NewContext() *Context {
	return &Context{}
}

func (ctx *Context) message(level int, format string, args ...interface{}) {
	if ctx != nil && ctx.Message != nil {
		ctx.Message(level, format, args...)
		return
	}
	if level == 0 {
		tracer().Errorf(format, args...)
	} else {
		tracer().Infof(format, args...)
	}
}

func (ctx *Context) actionFor(tag Tag) TableAction {
	var action TableAction
	if ctx != nil && ctx.TableAction != nil {
		action = ctx.TableAction(tag)
	}
	if action == ActionSanitize {
		action = ActionDefault
	}
	if ctx != nil && ctx.DropColorBitmapTables {
		switch tag {
		case TagCBDT, TagCBLC, TagSbix:
			return ActionDrop
		}
	}
	return action
}
