package ots

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func newCharstringState(lsubrs *cffIndex) *charstringState {
	font := newFont(NewContext(), sfntVersionOTTO)
	table := newCFFTable(font, TagCFF)
	if lsubrs == nil {
		lsubrs = &cffIndex{}
	}
	return &charstringState{
		t:        table,
		gsubrs:   &cffIndex{},
		lsubrs:   lsubrs,
		maxStack: maxArgumentStack,
	}
}

func TestCharstringEndchar(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	st := newCharstringState(nil)
	if err := st.execCharString([]byte{csEndChar}, 0); err != nil {
		t.Errorf("bare endchar rejected: %v", err)
	}
	if !st.foundEndchar {
		t.Error("endchar not recorded")
	}

	st = newCharstringState(nil)
	// A charstring that runs off the end without endchar fails.
	if err := st.execCharString([]byte{139, 22}, 0); err == nil {
		t.Error("charstring without endchar accepted")
	}
}

func TestCharstringSubrIndexOutOfRange(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	// Three zeros pushed, then callsubr against an empty subr index:
	// 0 + bias 107 is out of range.
	st := newCharstringState(nil)
	if err := st.execCharString([]byte{139, 139, 139, csCallSubr}, 0); err == nil {
		t.Error("subr call into empty subr index accepted")
	}
}

func TestCharstringComputedSubrIndexRejected(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	// "1 2 add callsubr": arithmetic results may not feed subr calls.
	st := newCharstringState(&cffIndex{
		table:   make([]byte, 300),
		offsets: make([]uint32, 301), // 300 subrs so any small index resolves
	})
	cs := []byte{140, 141, 12, 10, csCallSubr}
	if err := st.execCharString(cs, 0); err == nil {
		t.Error("computed subr index accepted")
	}
}

func TestCharstringStackOverflow(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	st := newCharstringState(nil)
	cs := make([]byte, maxArgumentStack+2)
	for i := range cs {
		cs[i] = 139 // push zero
	}
	if err := st.execCharString(cs, 0); err == nil {
		t.Error("argument stack overflow accepted")
	}
}

func TestCharstringHintCountBound(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	// 97 hstem operations with two operands (one hint) each exceed the
	// 96-hint budget at the 97th hint.
	st := newCharstringState(nil)
	var cs []byte
	for i := 0; i < 97; i++ {
		cs = append(cs, 139, 139, csHStem)
	}
	cs = append(cs, csEndChar)
	if err := st.execCharString(cs, 0); err == nil {
		t.Error("more than 96 stem hints accepted")
	}
}

func TestCharstringHintmaskConsumesMask(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	// One stem pair then hintmask: one mask byte follows the operator.
	st := newCharstringState(nil)
	cs := []byte{139, 139, csHStem, csHintMask, 0xff, csEndChar}
	if err := st.execCharString(cs, 0); err != nil {
		t.Errorf("hintmask with mask byte rejected: %v", err)
	}

	// Without the mask byte the charstring is truncated.
	st = newCharstringState(nil)
	cs = []byte{139, 139, csHStem, csHintMask}
	if err := st.execCharString(cs, 0); err == nil {
		t.Error("hintmask without mask byte accepted")
	}
}

func TestCharstringUnsupportedOperators(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	for _, esc := range []byte{20, 21, 23, 29, 30} { // put, get, random, index, roll
		st := newCharstringState(nil)
		cs := []byte{139, 139, 12, esc, csEndChar}
		if err := st.execCharString(cs, 0); err == nil {
			t.Errorf("unsupported operator 12 %d accepted", esc)
		}
	}
}

func TestCharstringFlexArity(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	// flex needs exactly 13 operands after the width is settled.
	st := newCharstringState(nil)
	cs := []byte{139, csHMoveTo}
	for i := 0; i < 13; i++ {
		cs = append(cs, 139)
	}
	cs = append(cs, 12, 35, csEndChar)
	if err := st.execCharString(cs, 0); err != nil {
		t.Errorf("flex with 13 operands rejected: %v", err)
	}

	st = newCharstringState(nil)
	cs = []byte{139, csHMoveTo, 139, 139, 12, 35, csEndChar}
	if err := st.execCharString(cs, 0); err == nil {
		t.Error("flex with 2 operands accepted")
	}
}

func TestCharstringMoveBeforeLine(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	// rlineto before any width-clearing operator is invalid.
	st := newCharstringState(nil)
	cs := []byte{139, 139, csRLineTo, csEndChar}
	if err := st.execCharString(cs, 0); err == nil {
		t.Error("rlineto before width-clearing operator accepted")
	}

	st = newCharstringState(nil)
	cs = []byte{139, 139, csRMoveTo, 139, 139, csRLineTo, csEndChar}
	if err := st.execCharString(cs, 0); err != nil {
		t.Errorf("moveto-lineto sequence rejected: %v", err)
	}
}

func TestCharstringSubrNesting(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	// One local subr that calls itself: nesting must stop at the limit,
	// not recurse forever.
	table := []byte{
		// subr 0 at offset 0: push -107 (biased back to 0), callsubr
		139 - 107, csCallSubr,
	}
	lsubrs := &cffIndex{table: table, offsets: []uint32{0, 2}}
	st := newCharstringState(lsubrs)
	cs := []byte{139 - 107, csCallSubr, csEndChar}
	if err := st.execCharString(cs, 0); err == nil {
		t.Error("unbounded subr recursion accepted")
	}
}
