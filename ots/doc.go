/*
Package ots is a sanitizing transcoder for OpenType and TrueType fonts.

Given an untrusted byte stream purporting to be a font, the package either
produces a structurally validated rewrite that is safe to hand to a
downstream rasterizer, or it rejects the input. Font rasterizers have
historically been a rich attack surface; this package runs ahead of them
and refuses malformed offsets, counts, cross-references and bytecode
before any of it reaches code that will interpret it.

The entry point is Process (or ProcessFont for a member of a collection):

	ctx := ots.NewContext()
	out := ots.NewExpandingMemoryStream()
	if err := ots.Process(out, raw, ctx); err != nil {
	    // font rejected; out contents are indeterminate
	}
	clean := out.Bytes()

Input may be a bare sfnt, a TrueType/OpenType collection (TTC), a WOFF
container, or — when enabled on the Context — a WOFF2 container. Output is
always an sfnt with a tag-sorted directory, 4-byte-padded tables, and
recomputed checksums.

The sanitizer is not a shaper and does not execute TrueType hinting. A
passing font is structurally safe to parse further, not guaranteed to be
semantically meaningful. Repair is limited to a few targeted fixes, such
as regenerating the `name` table and normalizing `head.indexToLocFormat`.

# Status

Work in progress. Graphite tables (Silf, Sill, Gloc, Glat, Feat) are not
parsed; callers may pass them through verbatim via the table-action
policy.

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © Norbert Pillmayer <norbert@pillmayer.com>
*/
package ots

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer writes to trace with key 'font.otsanitize'
func tracer() tracing.Trace {
	return tracing.Select("font.otsanitize")
}
