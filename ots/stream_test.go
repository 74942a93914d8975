package ots

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMemoryStreamBounds(t *testing.T) {
	m := NewMemoryStream(make([]byte, 4))
	if !m.WriteRaw([]byte{1, 2, 3, 4}) {
		t.Fatal("write within capacity must succeed")
	}
	if m.WriteRaw([]byte{5}) {
		t.Fatal("write past capacity must fail")
	}
	if m.Seek(5) {
		t.Fatal("seek past length must fail")
	}
	if !m.Seek(2) || m.Tell() != 2 {
		t.Fatal("seek within length must succeed")
	}
}

func TestCountingStreamMatchesMemoryStream(t *testing.T) {
	write := func(s *Serializer) {
		s.WriteU32(0xdeadbeef)
		s.WriteU16(7)
		s.Pad(3)
		s.PadToAlignment(4)
	}
	counter := NewCountingStream()
	write(NewSerializer(counter))

	mem := NewExpandingMemoryStream()
	write(NewSerializer(mem))

	if counter.Length() != int64(len(mem.Bytes())) {
		t.Errorf("counting stream says %d bytes, memory stream wrote %d",
			counter.Length(), len(mem.Bytes()))
	}
}

func TestSerializerChecksum(t *testing.T) {
	mem := NewExpandingMemoryStream()
	s := NewSerializer(mem)
	s.ResetChecksum()
	s.WriteU32(0x00010000)
	s.WriteU32(0x00000001)
	if got := s.Checksum(); got != 0x00010001 {
		t.Errorf("expected checksum 0x00010001, got %#x", got)
	}

	// Unaligned tails are summed zero-padded.
	s.ResetChecksum()
	s.Write([]byte{0x80})
	if got := s.Checksum(); got != 0x80000000 {
		t.Errorf("expected checksum 0x80000000, got %#x", got)
	}
}

func TestSerializerBigEndian(t *testing.T) {
	mem := NewExpandingMemoryStream()
	s := NewSerializer(mem)
	s.WriteU16(0x0102)
	s.WriteU24(0x030405)
	s.WriteS16(-2)
	s.WriteTag(TagHead)
	want := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0xff, 0xfe, 'h', 'e', 'a', 'd'}
	if diff := cmp.Diff(want, mem.Bytes()); diff != "" {
		t.Errorf("serialized bytes differ (-want +got):\n%s", diff)
	}
}

func TestComputeChecksumPadsTail(t *testing.T) {
	if got := computeChecksum([]byte{1, 2, 3, 4, 5}); got != 0x01020304+0x05000000 {
		t.Errorf("unexpected checksum %#x", got)
	}
}
