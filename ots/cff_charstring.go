package ots

import "math"

// Abstract execution of Type 2 charstrings, per Adobe Technical Note
// #5177. The interpreter tracks the argument-stack depth, not values:
// every operator is dispatched and its stack shape validated, but no
// outline is produced. Arithmetic results are replaced by a sentinel so
// that a subroutine index computed at run time can be recognized and
// rejected.

// Implementation limits from Appendix B of TN#5177; CFF2 widens the
// argument stack.
const (
	maxCharStringLength  = 65535
	maxArgumentStack     = 48
	maxArgumentStackCFF2 = 513
	maxStemHints         = 96
	maxSubrNesting       = 10
)

// dummyResult marks a stack entry whose value is not statically known.
// It is a huge positive integer so a subr call through it fails the
// range check even without the sentinel test.
const dummyResult = math.MaxInt32

// Type 2 charstring operators.
const (
	csHStem      = 1
	csVStem      = 3
	csVMoveTo    = 4
	csRLineTo    = 5
	csHLineTo    = 6
	csVLineTo    = 7
	csRRCurveTo  = 8
	csCallSubr   = 10
	csReturn     = 11
	csEndChar    = 14
	csVSIndex    = 15 // CFF2
	csBlend      = 16 // CFF2
	csHStemHm    = 18
	csHintMask   = 19
	csCntrMask   = 20
	csRMoveTo    = 21
	csHMoveTo    = 22
	csVStemHm    = 23
	csRCurveLine = 24
	csRLineCurve = 25
	csVVCurveTo  = 26
	csHHCurveTo  = 27
	csCallGSubr  = 29
	csVHCurveTo  = 30
	csHVCurveTo  = 31

	csAnd    = 12<<8 + 3
	csOr     = 12<<8 + 4
	csNot    = 12<<8 + 5
	csAbs    = 12<<8 + 9
	csAdd    = 12<<8 + 10
	csSub    = 12<<8 + 11
	csDiv    = 12<<8 + 12
	csNeg    = 12<<8 + 14
	csEq     = 12<<8 + 15
	csDrop   = 12<<8 + 18
	csPut    = 12<<8 + 20
	csGet    = 12<<8 + 21
	csIfElse = 12<<8 + 22
	csRandom = 12<<8 + 23
	csMul    = 12<<8 + 24
	csSqrt   = 12<<8 + 26
	csDup    = 12<<8 + 27
	csExch   = 12<<8 + 28
	csIndex  = 12<<8 + 29
	csRoll   = 12<<8 + 30
	csHFlex  = 12<<8 + 34
	csFlex   = 12<<8 + 35
	csHFlex1 = 12<<8 + 36
	csFlex1  = 12<<8 + 37
)

// charstringState is the per-glyph execution state.
type charstringState struct {
	t        *CFFTable
	gsubrs   *cffIndex
	lsubrs   *cffIndex
	cff2     bool
	maxStack int

	stack        []int32
	numStems     int
	foundWidth   bool
	foundEndchar bool
}

func (st *charstringState) push(v int32) error {
	if len(st.stack) >= st.maxStack {
		return st.t.Error("charstring: argument stack overflow")
	}
	st.stack = append(st.stack, v)
	return nil
}

func (st *charstringState) pop(n int) error {
	if len(st.stack) < n {
		return st.t.Error("charstring: argument stack underflow")
	}
	st.stack = st.stack[:len(st.stack)-n]
	return nil
}

func (st *charstringState) clear() {
	st.stack = st.stack[:0]
}

// readNumber reads the next token. isOperator distinguishes operators
// from operands; operand encoding follows TN#5177 Table 1.
func (st *charstringState) readNumber(cs *Buffer) (number int32, isOperator bool, err error) {
	var v uint8
	if !cs.ReadU8(&v) {
		return 0, false, st.t.Error("charstring: truncated token")
	}
	switch {
	case v <= 11:
		return int32(v), true, nil
	case v == 12:
		var w uint8
		if !cs.ReadU8(&w) {
			return 0, false, st.t.Error("charstring: truncated escape operator")
		}
		return int32(v)<<8 | int32(w), true, nil
	case v <= 27:
		// 19 and 20 consume their mask bytes in the dispatcher.
		return int32(v), true, nil
	case v == 28:
		break
	case v <= 31:
		return int32(v), true, nil
	case v <= 246:
		return int32(v) - 139, false, nil
	case v <= 250:
		var w uint8
		if !cs.ReadU8(&w) {
			return 0, false, st.t.Error("charstring: truncated operand")
		}
		return (int32(v)-247)*256 + int32(w) + 108, false, nil
	case v <= 254:
		var w uint8
		if !cs.ReadU8(&w) {
			return 0, false, st.t.Error("charstring: truncated operand")
		}
		return -(int32(v)-251)*256 - int32(w) - 108, false, nil
	default: // 255: 16.16 fixed, kept as its 32-bit pattern
		var fixed uint32
		if !cs.ReadU32(&fixed) {
			return 0, false, st.t.Error("charstring: truncated fixed operand")
		}
		return int32(fixed), false, nil
	}
	// v == 28: 16-bit signed integer
	var hi, lo uint8
	if !cs.ReadU8(&hi) || !cs.ReadU8(&lo) {
		return 0, false, st.t.Error("charstring: truncated short operand")
	}
	return int32(int16(uint16(hi)<<8 | uint16(lo))), false, nil
}

// execOperator validates one operator against the current stack shape.
func (st *charstringState) execOperator(op int32, callDepth int, cs *Buffer) error {
	stackSize := len(st.stack)

	switch op {
	case csCallSubr, csCallGSubr:
		subrs := st.lsubrs
		if op == csCallGSubr {
			subrs = st.gsubrs
		}
		if stackSize < 1 {
			return st.t.Error("charstring: subr call with empty stack")
		}
		subrNumber := st.stack[len(st.stack)-1]
		st.pop(1)
		if subrNumber == dummyResult {
			// Only immediate subr numbers are allowed: "123 callgsubr"
			// passes, "100 12 add callgsubr" does not. Arithmetic
			// operators always push the sentinel, so a computed index
			// cannot sneak past this check.
			return st.t.Error("charstring: subr index is a computed value")
		}

		// Subr index biasing per Adobe TN#5176, section 16.
		bias := int32(32768)
		if subrs.count() < 1240 {
			bias = 107
		} else if subrs.count() < 33900 {
			bias = 1131
		}
		subrNumber += bias

		if subrNumber < 0 || int(subrNumber) >= subrs.count() {
			return st.t.Error("charstring: subr index %d out of range", subrNumber)
		}
		blob, ok := subrs.blob(int(subrNumber))
		if !ok || len(blob) > maxCharStringLength {
			return st.t.Error("charstring: bad subr %d", subrNumber)
		}
		return st.execCharString(blob, callDepth+1)

	case csReturn:
		return nil

	case csEndChar:
		st.foundEndchar = true
		st.foundWidth = true // just in case
		return nil

	case csHStem, csVStem, csHStemHm, csVStemHm:
		ok := false
		if stackSize < 2 {
			return st.t.Error("charstring: stem operator with %d operands", stackSize)
		}
		if stackSize%2 == 0 {
			ok = true
		} else if !st.foundWidth && (stackSize-1)%2 == 0 {
			// The odd operand is the width, allowed before the first
			// stack-clearing operator only.
			ok = true
		}
		st.numStems += stackSize / 2
		if st.numStems > maxStemHints {
			return st.t.Error("charstring: more than %d stem hints", maxStemHints)
		}
		st.clear()
		st.foundWidth = true // a zero-width byte is also a width
		if !ok {
			return st.t.Error("charstring: bad stem operand count %d", stackSize)
		}
		return nil

	case csRMoveTo:
		ok := stackSize == 2 || (!st.foundWidth && stackSize-1 == 2)
		st.clear()
		st.foundWidth = true
		if !ok {
			return st.t.Error("charstring: bad rmoveto operand count %d", stackSize)
		}
		return nil

	case csVMoveTo, csHMoveTo:
		ok := stackSize == 1 || (!st.foundWidth && stackSize-1 == 1)
		st.clear()
		st.foundWidth = true
		if !ok {
			return st.t.Error("charstring: bad moveto operand count %d", stackSize)
		}
		return nil

	case csHintMask, csCntrMask:
		ok := false
		switch {
		case stackSize == 0:
			ok = true
		case !st.foundWidth && stackSize == 1:
			ok = true
		case !st.foundWidth || stackSize%2 == 0:
			// Implicit vstem definition preceding the mask.
			st.numStems += stackSize / 2
			if st.numStems > maxStemHints {
				return st.t.Error("charstring: more than %d stem hints", maxStemHints)
			}
			ok = true
		}
		if !ok {
			return st.t.Error("charstring: bad hintmask operand count %d", stackSize)
		}
		if st.numStems == 0 {
			return st.t.Error("charstring: hintmask without stem hints")
		}
		maskBytes := (st.numStems + 7) / 8
		if !cs.Skip(maskBytes) {
			return st.t.Error("charstring: truncated hint mask")
		}
		st.clear()
		st.foundWidth = true
		return nil

	case csRLineTo:
		if !st.foundWidth {
			// The first stack-clearing operator must be a stem, mask,
			// moveto or endchar.
			return st.t.Error("charstring: lineto before width-clearing operator")
		}
		if stackSize < 2 || stackSize%2 != 0 {
			return st.t.Error("charstring: bad rlineto operand count %d", stackSize)
		}
		st.clear()
		return nil

	case csHLineTo, csVLineTo:
		if !st.foundWidth {
			return st.t.Error("charstring: lineto before width-clearing operator")
		}
		if stackSize < 1 {
			return st.t.Error("charstring: bad lineto operand count %d", stackSize)
		}
		st.clear()
		return nil

	case csRRCurveTo:
		if !st.foundWidth {
			return st.t.Error("charstring: curveto before width-clearing operator")
		}
		if stackSize < 6 || stackSize%6 != 0 {
			return st.t.Error("charstring: bad rrcurveto operand count %d", stackSize)
		}
		st.clear()
		return nil

	case csRCurveLine:
		if !st.foundWidth {
			return st.t.Error("charstring: curveto before width-clearing operator")
		}
		if stackSize < 8 || (stackSize-2)%6 != 0 {
			return st.t.Error("charstring: bad rcurveline operand count %d", stackSize)
		}
		st.clear()
		return nil

	case csRLineCurve:
		if !st.foundWidth {
			return st.t.Error("charstring: curveto before width-clearing operator")
		}
		if stackSize < 8 || (stackSize-6)%2 != 0 {
			return st.t.Error("charstring: bad rlinecurve operand count %d", stackSize)
		}
		st.clear()
		return nil

	case csVVCurveTo:
		if !st.foundWidth {
			return st.t.Error("charstring: curveto before width-clearing operator")
		}
		if stackSize < 4 || (stackSize%4 != 0 && (stackSize-1)%4 != 0) {
			return st.t.Error("charstring: bad vvcurveto operand count %d", stackSize)
		}
		st.clear()
		return nil

	case csHHCurveTo:
		if !st.foundWidth {
			return st.t.Error("charstring: curveto before width-clearing operator")
		}
		// {dxa dxb dyb dxc}+ with an optional leading dy1.
		ok := stackSize >= 4 && (stackSize%4 == 0 || (stackSize-1)%4 == 0)
		st.clear()
		if !ok {
			return st.t.Error("charstring: bad hhcurveto operand count %d", stackSize)
		}
		return nil

	case csVHCurveTo, csHVCurveTo:
		if !st.foundWidth {
			return st.t.Error("charstring: curveto before width-clearing operator")
		}
		ok := stackSize >= 4 &&
			((stackSize-4)%8 == 0 ||
				(stackSize >= 5 && (stackSize-5)%8 == 0) ||
				(stackSize >= 8 && (stackSize-8)%8 == 0) ||
				(stackSize >= 9 && (stackSize-9)%8 == 0))
		st.clear()
		if !ok {
			return st.t.Error("charstring: bad vh/hvcurveto operand count %d", stackSize)
		}
		return nil

	case csAnd, csOr, csEq, csAdd, csSub, csMul:
		if stackSize < 2 {
			return st.t.Error("charstring: binary operator with %d operands", stackSize)
		}
		st.pop(2)
		return st.push(dummyResult)

	case csNot, csAbs, csNeg, csSqrt:
		if stackSize < 1 {
			return st.t.Error("charstring: unary operator with empty stack")
		}
		st.pop(1)
		return st.push(dummyResult)

	case csDiv:
		if stackSize < 1 {
			return st.t.Error("charstring: div with empty stack")
		}
		st.pop(1)
		return st.push(dummyResult)

	case csDrop:
		if stackSize < 1 {
			return st.t.Error("charstring: drop with empty stack")
		}
		return st.pop(1)

	case csPut, csGet, csIndex, csRoll, csRandom:
		// Validating these would require evaluating operand values;
		// rather than under-validate, refuse them. No benign font in
		// circulation uses them.
		return st.t.Error("charstring: unsupported operator %d", op)

	case csIfElse:
		if stackSize < 4 {
			return st.t.Error("charstring: ifelse with %d operands", stackSize)
		}
		st.pop(4)
		return st.push(dummyResult)

	case csDup:
		if stackSize < 1 {
			return st.t.Error("charstring: dup with empty stack")
		}
		st.pop(1)
		if err := st.push(dummyResult); err != nil {
			return err
		}
		return st.push(dummyResult)

	case csExch:
		if stackSize < 2 {
			return st.t.Error("charstring: exch with %d operands", stackSize)
		}
		st.pop(2)
		if err := st.push(dummyResult); err != nil {
			return err
		}
		return st.push(dummyResult)

	case csHFlex, csFlex, csHFlex1, csFlex1:
		if !st.foundWidth {
			return st.t.Error("charstring: flex before width-clearing operator")
		}
		arity := map[int32]int{csHFlex: 7, csFlex: 13, csHFlex1: 9, csFlex1: 11}[op]
		if stackSize != arity {
			return st.t.Error("charstring: flex operator with %d operands, want %d",
				stackSize, arity)
		}
		st.clear()
		return nil

	case csVSIndex:
		if !st.cff2 {
			break
		}
		if stackSize != 1 {
			return st.t.Error("charstring: vsindex with %d operands", stackSize)
		}
		st.clear()
		return nil

	case csBlend:
		if !st.cff2 {
			break
		}
		if stackSize < 1 {
			return st.t.Error("charstring: blend with empty stack")
		}
		n := st.stack[len(st.stack)-1]
		if n == dummyResult || n < 0 || int(n) > stackSize-1 {
			return st.t.Error("charstring: bad blend operand count")
		}
		// Pop the count and all delta tuples, leave n unknown results.
		st.clear()
		for i := int32(0); i < n; i++ {
			if err := st.push(dummyResult); err != nil {
				return err
			}
		}
		return nil
	}

	st.t.Warning("charstring: undefined operator %d (%#x)", op, op)
	return st.t.Error("charstring: undefined operator %d", op)
}

// execCharString abstractly executes one charstring, recursing through
// subr calls up to the nesting limit.
func (st *charstringState) execCharString(charString []byte, callDepth int) error {
	if callDepth > maxSubrNesting {
		return st.t.Error("charstring: subr nesting deeper than %d", maxSubrNesting)
	}
	st.foundEndchar = false

	cs := NewBuffer(charString)
	for cs.Remaining() > 0 {
		number, isOperator, err := st.readNumber(cs)
		if err != nil {
			return err
		}
		if !isOperator {
			if err := st.push(number); err != nil {
				return err
			}
			continue
		}
		if err := st.execOperator(number, callDepth, cs); err != nil {
			return err
		}
		if st.foundEndchar {
			return nil
		}
		if number == csReturn {
			return nil
		}
	}

	if st.cff2 {
		// CFF2 charstrings have no endchar; running off the end is the
		// normal termination.
		st.foundEndchar = true
		return nil
	}
	return st.t.Error("charstring: no endchar")
}

// validateCharStrings runs abstract execution over every glyph in the
// CharStrings INDEX.
func (t *CFFTable) validateCharStrings(charStrings, gsubrs *cffIndex,
	fdSelect map[uint16]uint8, localSubrsPerFD []*cffIndex, localSubrs *cffIndex) error {

	if charStrings.count() == 0 {
		return t.Error("charstring index is empty")
	}

	emptySubrs := &cffIndex{}
	for i := 0; i < charStrings.count(); i++ {
		blob, ok := charStrings.blob(i)
		if !ok || len(blob) > maxCharStringLength {
			return t.Error("bad charstring for glyph %d", i)
		}

		// Pick the local subrs for the glyph: CID fonts route through
		// FDSelect, plain fonts use the Private DICT subrs.
		subrs := localSubrs
		if len(fdSelect) > 0 && len(localSubrsPerFD) > 0 {
			fd, ok := fdSelect[uint16(i)]
			if !ok {
				return t.Error("glyph %d missing from FDSelect", i)
			}
			if int(fd) >= len(localSubrsPerFD) {
				return t.Error("glyph %d has bad FD index %d", i, fd)
			}
			subrs = localSubrsPerFD[fd]
		}
		if subrs == nil {
			subrs = emptySubrs
		}

		maxStack := maxArgumentStack
		if t.cff2 {
			maxStack = maxArgumentStackCFF2
		}
		st := &charstringState{
			t:        t,
			gsubrs:   gsubrs,
			lsubrs:   subrs,
			cff2:     t.cff2,
			maxStack: maxStack,
			stack:    make([]int32, 0, maxStack),
		}
		if err := st.execCharString(blob, 0); err != nil {
			return t.Error("glyph %d: %v", i, err)
		}
	}
	return nil
}
