package ots

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/require"
)

func TestNameIsRegenerated(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	font := newFont(NewContext(), sfntVersionTrueType)
	name := newNameTable(font)
	require.NoError(t, name.Parse(buildName()))

	mem := NewExpandingMemoryStream()
	require.NoError(t, name.Serialize(NewSerializer(mem)))
	out := mem.Bytes()

	buf := NewBuffer(out)
	var version, count, stringOffset uint16
	require.True(t, buf.ReadU16(&version))
	require.True(t, buf.ReadU16(&count))
	require.True(t, buf.ReadU16(&stringOffset))
	require.Equal(t, uint16(0), version)
	require.Equal(t, uint16(9), count)
	require.Equal(t, uint16(6+9*12), stringOffset)

	// Every record is Windows / Unicode BMP / US English, IDs ascending,
	// strings inside the storage area.
	prevID := -1
	for i := 0; i < int(count); i++ {
		var platform, encoding, language, nameID, length, offset uint16
		require.True(t, buf.ReadU16(&platform))
		require.True(t, buf.ReadU16(&encoding))
		require.True(t, buf.ReadU16(&language))
		require.True(t, buf.ReadU16(&nameID))
		require.True(t, buf.ReadU16(&length))
		require.True(t, buf.ReadU16(&offset))
		require.Equal(t, uint16(3), platform)
		require.Equal(t, uint16(1), encoding)
		require.Equal(t, uint16(0x0409), language)
		require.Greater(t, int(nameID), prevID)
		prevID = int(nameID)
		require.LessOrEqual(t, int(stringOffset)+int(offset)+int(length), len(out))
	}
}

func TestNameDecodesFamilyForDiagnostics(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	// One Windows BMP record with name ID 1 = "Demo" in UTF-16BE.
	b := &bytesBuilder{}
	b.u16(0).u16(1).u16(18)
	b.u16(3).u16(1).u16(0x0409).u16(1).u16(8).u16(0)
	for _, r := range "Demo" {
		b.u16(uint16(r))
	}
	font := newFont(NewContext(), sfntVersionTrueType)
	name := newNameTable(font)
	require.NoError(t, name.Parse(b.bytes()))
	require.Equal(t, "Demo", name.FamilyName)
}

func TestNameTruncatedRecordsAreNotFatal(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font.otsanitize")
	defer teardown()
	//
	// A record count pointing past the end only loses the records: the
	// table is regenerated anyway.
	b := &bytesBuilder{}
	b.u16(0).u16(200).u16(6)
	font := newFont(NewContext(), sfntVersionTrueType)
	name := newNameTable(font)
	require.NoError(t, name.Parse(b.bytes()))
}
