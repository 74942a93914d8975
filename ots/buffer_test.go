package ots

import "testing"

func TestBufferReadsAreAtomic(t *testing.T) {
	buf := NewBuffer([]byte{0x12, 0x34, 0x56})

	var v32 uint32
	if buf.ReadU32(&v32) {
		t.Fatal("read of 4 bytes from a 3-byte buffer must fail")
	}
	if buf.Offset() != 0 {
		t.Errorf("failed read moved the offset to %d", buf.Offset())
	}
	if v32 != 0 {
		t.Errorf("failed read touched the destination: %#x", v32)
	}

	var v16 uint16
	if !buf.ReadU16(&v16) || v16 != 0x1234 {
		t.Errorf("expected 0x1234, got %#x", v16)
	}
	if buf.Remaining() != 1 {
		t.Errorf("expected 1 byte remaining, got %d", buf.Remaining())
	}
}

func TestBufferSkipAndSeek(t *testing.T) {
	buf := NewBuffer(make([]byte, 10))
	if !buf.Skip(10) {
		t.Fatal("skip to end must succeed")
	}
	if buf.Skip(1) {
		t.Fatal("skip past end must fail")
	}
	if !buf.SetOffset(10) {
		t.Fatal("seek to length must succeed")
	}
	if buf.SetOffset(11) {
		t.Fatal("seek past length must fail")
	}
	if buf.SetOffset(-1) {
		t.Fatal("negative seek must fail")
	}
}

func TestBufferTypedReads(t *testing.T) {
	buf := NewBuffer([]byte{
		0xff,       // s8 = -1
		0x80, 0x00, // s16 = -32768
		0x01, 0x02, 0x03, // u24
		'g', 'l', 'y', 'f',
	})
	var s8 int8
	if !buf.ReadS8(&s8) || s8 != -1 {
		t.Errorf("expected -1, got %d", s8)
	}
	var s16 int16
	if !buf.ReadS16(&s16) || s16 != -32768 {
		t.Errorf("expected -32768, got %d", s16)
	}
	var u24 uint32
	if !buf.ReadU24(&u24) || u24 != 0x010203 {
		t.Errorf("expected 0x010203, got %#x", u24)
	}
	var tag Tag
	if !buf.ReadTag(&tag) || tag != TagGlyf {
		t.Errorf("expected glyf, got %s", tag)
	}
}
