package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/npillmayer/otsanitize"
	"github.com/npillmayer/otsanitize/ots"
	"github.com/pterm/pterm"
)

// The inspector is a small REPL over the table directory of the raw
// input file. It reads the directory without trusting it, so it also
// works on fonts the sanitizer rejects; that is usually why one wants
// to look inside.

type dirEntry struct {
	tag      ots.Tag
	checksum uint32
	offset   uint32
	length   uint32
}

// readDirectory decodes the sfnt table directory for display purposes.
// Collections show their first member.
func readDirectory(data []byte) ([]dirEntry, error) {
	buf := ots.NewBuffer(data)

	var version uint32
	if !buf.ReadU32(&version) {
		return nil, fmt.Errorf("file too short for a font header")
	}
	if version == 0x74746366 { // 'ttcf'
		var ttcVersion, numFonts, first uint32
		if !buf.ReadU32(&ttcVersion) || !buf.ReadU32(&numFonts) || !buf.ReadU32(&first) {
			return nil, fmt.Errorf("bad collection header")
		}
		if !buf.SetOffset(int(first)) || !buf.ReadU32(&version) {
			return nil, fmt.Errorf("bad collection offset %d", first)
		}
	}

	var numTables uint16
	if !buf.ReadU16(&numTables) || !buf.Skip(6) {
		return nil, fmt.Errorf("bad font header")
	}
	entries := make([]dirEntry, 0, numTables)
	for i := 0; i < int(numTables); i++ {
		var e dirEntry
		if !buf.ReadTag(&e.tag) || !buf.ReadU32(&e.checksum) ||
			!buf.ReadU32(&e.offset) || !buf.ReadU32(&e.length) {
			return nil, fmt.Errorf("truncated table directory")
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func runInspector(path string, data []byte) {
	pterm.Info.Printf("Inspecting %s (%d bytes)\n", path, len(data))
	pterm.Info.Println("Commands: tables, sanitize [DST], help; quit with <ctrl>D")

	repl, err := readline.New("ots > ")
	if err != nil {
		tracer().Errorf(err.Error())
		os.Exit(3)
	}
	defer repl.Close()

	for {
		line, err := repl.Readline()
		if err != nil { // io.EOF on ctrl-D
			return
		}
		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		switch cmd {
		case "":
		case "quit", "exit":
			return
		case "tables":
			listTables(data)
		case "sanitize":
			sanitizeInteractive(data, strings.TrimSpace(arg))
		case "help":
			pterm.Println(`
	tables          list the table directory of the input file
	sanitize [DST]  run the sanitizer; write the result to DST if given
	quit            leave the inspector`)
		default:
			pterm.Error.Printf("unknown command %q\n", cmd)
		}
	}
}

func listTables(data []byte) {
	entries, err := readDirectory(data)
	if err != nil {
		pterm.Error.Println(err.Error())
		return
	}
	rows := [][]string{{"Tag", "Offset", "Length", "Checksum"}}
	for _, e := range entries {
		rows = append(rows, []string{
			e.tag.String(),
			fmt.Sprintf("%d", e.offset),
			fmt.Sprintf("%d", e.length),
			fmt.Sprintf("%08x", e.checksum),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		pterm.Error.Println(err.Error())
	}
}

func sanitizeInteractive(data []byte, dst string) {
	clean, err := otsanitize.Sanitize(data,
		otsanitize.WithMessageFunc(reportMessage),
		otsanitize.WithTableAction(graphitePassthru))
	if err != nil {
		pterm.Error.Println("font rejected")
		return
	}
	pterm.Success.Printf("font passed, %d bytes out\n", len(clean))
	if dst != "" {
		if err := os.WriteFile(dst, clean, 0o644); err != nil {
			pterm.Error.Println(err.Error())
			return
		}
		pterm.Success.Printf("written to %s\n", dst)
	}
}
