package ots

// Tag is a 4-byte identifier for an OpenType table or sub-resource,
// interpreted as a big-endian uint32.
type Tag uint32

// MakeTag creates a Tag from 4 bytes. If b is shorter or longer, it is
// silently extended or cut as appropriate.
//
//	MakeTag([]byte("cmap"))
func MakeTag(b []byte) Tag {
	if b == nil {
		b = []byte{0, 0, 0, 0}
	} else if len(b) > 4 {
		b = b[:4]
	} else if len(b) < 4 {
		b = append([]byte{0, 0, 0, 0}[:4-len(b)], b...)
	}
	return Tag(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]))
}

// T returns the Tag for a table name, e.g. T("glyf"). Names shorter than
// 4 bytes are padded with trailing spaces, as in T("CFF") == T("CFF ").
func T(t string) Tag {
	for len(t) < 4 {
		t += " "
	}
	return MakeTag([]byte(t))
}

func (t Tag) String() string {
	return string([]byte{
		byte(t >> 24 & 0xff),
		byte(t >> 16 & 0xff),
		byte(t >> 8 & 0xff),
		byte(t & 0xff),
	})
}

// Tags of the tables the sanitizer recognizes.
var (
	TagHead = T("head")
	TagMaxp = T("maxp")
	TagLoca = T("loca")
	TagGlyf = T("glyf")
	TagCmap = T("cmap")
	TagHhea = T("hhea")
	TagHmtx = T("hmtx")
	TagVhea = T("vhea")
	TagVmtx = T("vmtx")
	TagOS2  = T("OS/2")
	TagPost = T("post")
	TagName = T("name")
	TagCvt  = T("cvt ")
	TagFpgm = T("fpgm")
	TagPrep = T("prep")
	TagCFF  = T("CFF ")
	TagCFF2 = T("CFF2")
	TagVORG = T("VORG")
	TagKern = T("kern")
	TagGasp = T("gasp")
	TagHdmx = T("hdmx")
	TagLTSH = T("LTSH")
	TagVDMX = T("VDMX")
	TagDSIG = T("DSIG")
	TagFvar = T("fvar")
	TagGvar = T("gvar")
	TagGDEF = T("GDEF")
	TagGSUB = T("GSUB")
	TagGPOS = T("GPOS")
	TagBASE = T("BASE")
	TagJSTF = T("JSTF")
	TagMATH = T("MATH")
	TagCOLR = T("COLR")
	TagCPAL = T("CPAL")
	TagEBLC = T("EBLC")
	TagEBDT = T("EBDT")
	TagEBSC = T("EBSC")
	TagCBLC = T("CBLC")
	TagCBDT = T("CBDT")
	TagSbix = T("sbix")

	// Graphite tables; never parsed, only passed through by policy.
	TagSilf = T("Silf")
	TagSill = T("Sill")
	TagGloc = T("Gloc")
	TagGlat = T("Glat")
	TagFeat = T("Feat")
)

// sfnt scaler types accepted in a font header.
const (
	sfntVersionTrueType = 0x00010000
	sfntVersionOTTO     = 0x4f54544f // 'OTTO', CFF outlines
	sfntVersionAppleTT  = 0x74727565 // 'true'
	sfntVersionTyp1     = 0x74797031 // 'typ1'
	ttcTag              = 0x74746366 // 'ttcf'
	woffSignature       = 0x774f4646 // 'wOFF'
	woff2Signature      = 0x774f4632 // 'wOF2'
)
