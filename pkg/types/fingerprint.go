package types

import (
	"encoding/binary"
	"hash"
	"strconv"

	"github.com/spaolacci/murmur3"
)

// Fingerprint computes a 64-bit structural fingerprint of a column set using
// murmur3 over a canonical field serialization. Two column sets with equal
// fingerprints are treated as structurally identical for fast-path checks;
// the version store stores the fingerprint alongside each snapshot so that
// no-change comparisons avoid decompressing the column blob.
func Fingerprint(cols []SchemaColumn) uint64 {
	h := murmur3.New64()
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(cols)))
	h.Write(lenBuf[:])

	for _, c := range cols {
		writeField(h, c.Name)
		writeField(h, string(c.Type))
		writeField(h, c.Description)
		writeField(h, boolToken(c.IsRequired)+boolToken(c.IsPrimaryKey)+boolToken(c.IsForeignKey))
		writeField(h, c.ReferencesTable)
		writeField(h, c.ReferencesColumn)
		if c.DefaultValue != nil {
			writeField(h, "d:"+*c.DefaultValue)
		} else {
			writeField(h, "d-")
		}
		if r := c.ValidationRules; r != nil {
			writeField(h, "r:"+intToken(r.MinLength)+intToken(r.MaxLength)+r.Pattern+floatToken(r.Min)+floatToken(r.Max))
			for _, e := range r.Enum {
				writeField(h, "e:"+e)
			}
		} else {
			writeField(h, "r-")
		}
	}
	return h.Sum64()
}

// writeField writes a length-prefixed string so that adjacent fields cannot
// collide by concatenation.
func writeField(h hash.Hash64, s string) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	h.Write(lenBuf[:])
	h.Write([]byte(s))
}

func boolToken(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func intToken(p *int) string {
	if p == nil {
		return "-"
	}
	return strconv.Itoa(*p)
}

func floatToken(p *float64) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatFloat(*p, 'g', -1, 64)
}
