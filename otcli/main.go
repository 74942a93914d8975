// ot-sanitise: command line front end for the OpenType sanitizer.
//
// Usage:
//
//	ot-sanitise SRC [DST [INDEX]]
//
// reads font file SRC, sanitizes it and writes the result to DST (or
// discards it when no destination is given), optionally selecting
// member INDEX of a collection. Exit status 0 means the font passed.
//
// A bare font name (no path separator, no extension) is resolved
// through the system font directories. `-inspect` opens an interactive
// table inspector instead of writing output.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/flopp/go-findfont"
	"github.com/npillmayer/otsanitize"
	"github.com/npillmayer/otsanitize/ots"
	"github.com/npillmayer/schuko/schukonf/testconfig"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gologadapter"
	"github.com/npillmayer/schuko/tracing/trace2go"
	"github.com/pterm/pterm"
)

const packageVersion = "otsanitize 0.1.0"

// tracer traces with key 'font.otsanitize'
func tracer() tracing.Trace {
	return tracing.Select("font.otsanitize")
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] font_file [dest_font_file] [index]\n",
		filepath.Base(os.Args[0]))
	flag.PrintDefaults()
}

func main() {
	initDisplay()

	// set up logging
	tracing.RegisterTraceAdapter("go", gologadapter.GetAdapter(), false)
	conf := testconfig.Conf{
		"tracing.adapter":       "go",
		"trace.font.otsanitize": "Error",
	}
	if err := trace2go.ConfigureRoot(conf, "trace", trace2go.ReplaceTracers(true)); err != nil {
		fmt.Println("error configuring tracing")
		os.Exit(1)
	}
	tracing.SetTraceSelector(trace2go.Selector())

	tlevel := flag.String("trace", "Error", "Trace level [Debug|Info|Error]")
	version := flag.Bool("version", false, "Print package version and exit")
	inspect := flag.Bool("inspect", false, "Inspect the font interactively instead of writing output")
	woff2 := flag.Bool("woff2", false, "Accept WOFF2 input")
	dropBitmaps := flag.Bool("drop-color-bitmaps", false, "Drop CBDT/CBLC/sbix tables")
	flag.Usage = usage
	flag.Parse()

	if *version {
		fmt.Println(packageVersion)
		return
	}

	switch *tlevel {
	case "Debug":
		tracer().SetTraceLevel(tracing.LevelDebug)
	case "Info":
		tracer().SetTraceLevel(tracing.LevelInfo)
	case "Error":
		tracer().SetTraceLevel(tracing.LevelError)
	default:
		pterm.Error.Printf("invalid trace level %q\n", *tlevel)
		os.Exit(5)
	}

	args := flag.Args()
	if len(args) < 1 || len(args) > 3 {
		usage()
		os.Exit(1)
	}

	src, err := resolveFontPath(args[0])
	if err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}

	if *inspect {
		runInspector(src, data)
		return
	}

	index := -1
	if len(args) >= 3 {
		if index, err = strconv.Atoi(args[2]); err != nil {
			pterm.Error.Printf("bad font index %q\n", args[2])
			os.Exit(1)
		}
	}

	opts := []otsanitize.Option{
		otsanitize.WithFontIndex(index),
		otsanitize.WithMessageFunc(reportMessage),
		otsanitize.WithTableAction(graphitePassthru),
	}
	if *woff2 {
		opts = append(opts, otsanitize.WithWOFF2())
	}
	if *dropBitmaps {
		opts = append(opts, otsanitize.WithDropColorBitmaps())
	}

	clean, err := otsanitize.Sanitize(data, opts...)
	if err != nil {
		pterm.Error.Println("Failed to sanitise file!")
		os.Exit(1)
	}

	if len(args) >= 2 {
		if err := os.WriteFile(args[1], clean, 0o644); err != nil {
			pterm.Error.Println(err.Error())
			os.Exit(1)
		}
	}
	pterm.Success.Printf("%s: %d bytes in, %d bytes out\n", filepath.Base(src),
		len(data), len(clean))
}

// reportMessage routes sanitizer diagnostics to the terminal.
func reportMessage(level int, format string, args ...interface{}) {
	if level == 0 {
		pterm.Error.Printf(format+"\n", args...)
	} else {
		pterm.Warning.Printf(format+"\n", args...)
	}
}

// graphitePassthru keeps the Graphite tables, which the sanitizer does
// not parse, instead of dropping them.
func graphitePassthru(tag ots.Tag) ots.TableAction {
	switch tag {
	case ots.TagSilf, ots.TagSill, ots.TagGloc, ots.TagGlat, ots.TagFeat:
		return ots.ActionPassthru
	}
	return ots.ActionDefault
}

// resolveFontPath accepts a path, or a bare font name which is searched
// for in the system font directories.
func resolveFontPath(name string) (string, error) {
	if strings.ContainsRune(name, os.PathSeparator) || strings.ContainsRune(name, '.') {
		return name, nil
	}
	path, err := findfont.Find(name + ".ttf")
	if err == nil {
		return path, nil
	}
	if path, err = findfont.Find(name + ".otf"); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("cannot find font %q in system font directories", name)
}

// We use pterm for moderately fancy output.
func initDisplay() {
	pterm.Info.Prefix = pterm.Prefix{
		Text:  " !  ",
		Style: pterm.NewStyle(pterm.BgCyan, pterm.FgBlack),
	}
	pterm.Error.Prefix = pterm.Prefix{
		Text:  " Error",
		Style: pterm.NewStyle(pterm.BgRed, pterm.FgBlack),
	}
}
