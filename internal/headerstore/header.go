// Package headerstore implements the per-level game-header side store: a
// fixed-layout packed header record, an append-only blob of them and a
// parallel offset index supporting lookup by game index or raw byte
// offset.
package headerstore

import (
	"encoding/binary"
	"fmt"

	"github.com/chessdb/chessdb/chesskey"
)

// PlyCountUnknown is the sentinel ply count meaning "not recorded".
const PlyCountUnknown = 0xFFFF

// MaxStringField is the maximum byte length of Event/White/Black.
const MaxStringField = 255

// Date is a year/month/day; Year is the full calendar year (0 when
// unknown), Month 1-12, Day 1-31. The packed form stores the year relative
// to 1900 in 7 bits (0-127); an all-zero packed date decodes as the zero
// Date.
type Date struct {
	Year  uint16 // full calendar year, e.g. 2024
	Month uint8
	Day   uint8
}

func (d Date) pack() uint16 {
	yearsSince1900 := uint16(0)
	if d.Year >= 1900 {
		yearsSince1900 = d.Year - 1900
	}
	if yearsSince1900 > 0x7F {
		yearsSince1900 = 0x7F
	}
	return (yearsSince1900&0x7F)<<9 | (uint16(d.Month)&0xF)<<5 | (uint16(d.Day) & 0x1F)
}

func unpackDate(v uint16) Date {
	if v == 0 {
		return Date{}
	}
	return Date{
		Year:  1900 + (v>>9)&0x7F,
		Month: uint8((v >> 5) & 0xF),
		Day:   uint8(v & 0x1F),
	}
}

// GameHeader is the full in-memory record for one imported game.
type GameHeader struct {
	GameIndex uint64
	Result    chesskey.Result
	Date      Date
	ECO       string // 0-3 bytes, e.g. "B20"
	PlyCount  int    // -1 means unknown
	Event     string
	White     string
	Black     string
}

// fixedFieldsSize is the byte size of every field preceding the three
// length-prefixed strings: game index (8) + record size (2) + result (1)
// + date (2) + ECO (3, fixed-width, zero-padded) + ply count (2).
const fixedFieldsSize = 8 + 2 + 1 + 2 + 3 + 2

// Encode serializes h as a PackedGameHeader record: game index, the
// record's own total size, result, date, ECO, ply count, then Event,
// White, Black as 1-byte-length-prefixed strings.
func Encode(h GameHeader) ([]byte, error) {
	for name, s := range map[string]string{"Event": h.Event, "White": h.White, "Black": h.Black} {
		if len(s) > MaxStringField {
			return nil, fmt.Errorf("headerstore: %s field length %d exceeds max %d", name, len(s), MaxStringField)
		}
	}
	if len(h.ECO) > 3 {
		return nil, fmt.Errorf("headerstore: ECO field %q longer than 3 bytes", h.ECO)
	}

	total := fixedFieldsSize + 1 + len(h.Event) + 1 + len(h.White) + 1 + len(h.Black)
	buf := make([]byte, total)

	binary.LittleEndian.PutUint64(buf[0:8], h.GameIndex)
	binary.LittleEndian.PutUint16(buf[8:10], uint16(total))
	buf[10] = byte(h.Result)
	binary.LittleEndian.PutUint16(buf[11:13], h.Date.pack())

	var eco [3]byte
	copy(eco[:], h.ECO)
	copy(buf[13:16], eco[:])

	ply := uint16(PlyCountUnknown)
	if h.PlyCount >= 0 && h.PlyCount < PlyCountUnknown {
		ply = uint16(h.PlyCount)
	}
	binary.LittleEndian.PutUint16(buf[16:18], ply)

	off := fixedFieldsSize
	off = putString(buf, off, h.Event)
	off = putString(buf, off, h.White)
	putString(buf, off, h.Black)

	return buf, nil
}

func putString(buf []byte, off int, s string) int {
	buf[off] = byte(len(s))
	off++
	copy(buf[off:], s)
	return off + len(s)
}

// PeekSize reads a record's total length from its first 10 bytes
// (game index + size field), the amount a pooled seek+read must fetch
// before the rest of the record can be decoded.
func PeekSize(header10Bytes []byte) (int, error) {
	if len(header10Bytes) < 10 {
		return 0, fmt.Errorf("headerstore: need at least 10 bytes to read record size, got %d", len(header10Bytes))
	}
	return int(binary.LittleEndian.Uint16(header10Bytes[8:10])), nil
}

// Decode parses a full record (length as returned by PeekSize) into a
// GameHeader.
func Decode(buf []byte) (GameHeader, error) {
	if len(buf) < fixedFieldsSize {
		return GameHeader{}, fmt.Errorf("headerstore: record too short: %d bytes", len(buf))
	}
	h := GameHeader{
		GameIndex: binary.LittleEndian.Uint64(buf[0:8]),
		Result:    chesskey.Result(buf[10]),
		Date:      unpackDate(binary.LittleEndian.Uint16(buf[11:13])),
		ECO:       trimZero(buf[13:16]),
	}
	ply := binary.LittleEndian.Uint16(buf[16:18])
	if ply == PlyCountUnknown {
		h.PlyCount = -1
	} else {
		h.PlyCount = int(ply)
	}

	off := fixedFieldsSize
	var err error
	h.Event, off, err = getString(buf, off)
	if err != nil {
		return GameHeader{}, err
	}
	h.White, off, err = getString(buf, off)
	if err != nil {
		return GameHeader{}, err
	}
	h.Black, _, err = getString(buf, off)
	if err != nil {
		return GameHeader{}, err
	}
	return h, nil
}

func getString(buf []byte, off int) (string, int, error) {
	if off >= len(buf) {
		return "", 0, fmt.Errorf("headerstore: truncated record reading string length at offset %d", off)
	}
	n := int(buf[off])
	off++
	if off+n > len(buf) {
		return "", 0, fmt.Errorf("headerstore: truncated record reading %d-byte string at offset %d", n, off)
	}
	return string(buf[off : off+n]), off + n, nil
}

func trimZero(b []byte) string {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return string(b[:n])
}
