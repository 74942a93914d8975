/*
Package otsanitize turns untrusted OpenType/TrueType font files into
structurally validated rewrites that are safe to hand to a rasterizer.

The heavy lifting lives in package ots; this package is the convenience
surface for the common case:

	clean, err := otsanitize.Sanitize(raw)
	if err != nil {
	    // font rejected
	}

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © Norbert Pillmayer <norbert@pillmayer.com>
*/
package otsanitize

import (
	"github.com/npillmayer/otsanitize/ots"
	"github.com/npillmayer/schuko/tracing"
)

// tracer writes to trace with key 'font.otsanitize'
func tracer() tracing.Trace {
	return tracing.Select("font.otsanitize")
}

// Option configures a sanitization run.
type Option func(*config)

type config struct {
	ctx   *ots.Context
	index int
}

// WithWOFF2 accepts WOFF2 input containers.
func WithWOFF2() Option {
	return func(c *config) { c.ctx.WOFF2Enabled = true }
}

// WithDropColorBitmaps removes the color bitmap tables (CBDT, CBLC,
// sbix) from the output.
func WithDropColorBitmaps() Option {
	return func(c *config) { c.ctx.DropColorBitmapTables = true }
}

// WithFontIndex selects a member of a font collection; the default is
// the first member.
func WithFontIndex(index int) Option {
	return func(c *config) { c.index = index }
}

// WithMessageFunc routes diagnostics to a caller-supplied sink instead
// of the trace log. Level 0 is an error, higher levels are warnings.
func WithMessageFunc(message ots.MessageFunc) Option {
	return func(c *config) { c.ctx.Message = message }
}

// WithTableAction installs a per-tag policy callback, e.g. to pass
// Graphite tables through unparsed or to drop tables wholesale.
func WithTableAction(action ots.TableActionFunc) Option {
	return func(c *config) { c.ctx.TableAction = action }
}

// Sanitize validates and rewrites one font. Input may be a bare sfnt, a
// collection member (see WithFontIndex), a WOFF file, or a WOFF2 file
// when enabled. The returned bytes are always a plain sfnt.
func Sanitize(data []byte, opts ...Option) ([]byte, error) {
	c := &config{ctx: ots.NewContext(), index: -1}
	for _, opt := range opts {
		opt(c)
	}

	tracer().Debugf("sanitizing font of %d bytes", len(data))
	out := ots.NewExpandingMemoryStream()
	if err := ots.ProcessFont(out, data, c.ctx, c.index); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
