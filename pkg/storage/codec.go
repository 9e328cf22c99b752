package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/wcygan/sql-database/pkg/types"
)

// Tuple encoding: uint16 LE value count, then one tagged value per column.
// Each value is a tag byte followed by its payload, fixed-width except for
// text, which is length-prefixed:
//
//	null: tag only
//	int:  8-byte LE two's complement
//	text: uint32 LE byte length + bytes
//	bool: 1 byte (0 or 1)
//
// The encoding is deterministic: identical rows produce identical bytes,
// which the WAL, the heap, and the primary-key index all rely on.

// EncodeRow serializes a row's values.
func EncodeRow(values []types.Value) ([]byte, error) {
	if len(values) > int(^uint16(0)) {
		return nil, fmt.Errorf("storage: row has %d values, too many to encode", len(values))
	}
	buf := make([]byte, 2, 2+len(values)*9)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(values)))
	for _, v := range values {
		buf = append(buf, byte(v.Tag))
		switch v.Tag {
		case types.TagNull:
		case types.TagInt:
			var scratch [8]byte
			binary.LittleEndian.PutUint64(scratch[:], uint64(v.Int))
			buf = append(buf, scratch[:]...)
		case types.TagText:
			var scratch [4]byte
			binary.LittleEndian.PutUint32(scratch[:], uint32(len(v.Text)))
			buf = append(buf, scratch[:]...)
			buf = append(buf, v.Text...)
		case types.TagBool:
			if v.Bool {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		default:
			return nil, fmt.Errorf("storage: cannot encode value tag %d", v.Tag)
		}
	}
	return buf, nil
}

// DecodeRow reverses EncodeRow.
func DecodeRow(data []byte) ([]types.Value, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("storage: tuple truncated: %d bytes", len(data))
	}
	count := int(binary.LittleEndian.Uint16(data[0:2]))
	values := make([]types.Value, 0, count)
	pos := 2
	for i := 0; i < count; i++ {
		if pos >= len(data) {
			return nil, fmt.Errorf("storage: tuple truncated at value %d", i)
		}
		tag := types.ValueTag(data[pos])
		pos++
		switch tag {
		case types.TagNull:
			values = append(values, types.Null())
		case types.TagInt:
			if pos+8 > len(data) {
				return nil, fmt.Errorf("storage: tuple truncated in int value %d", i)
			}
			values = append(values, types.NewInt(int64(binary.LittleEndian.Uint64(data[pos:pos+8]))))
			pos += 8
		case types.TagText:
			if pos+4 > len(data) {
				return nil, fmt.Errorf("storage: tuple truncated in text length %d", i)
			}
			n := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
			pos += 4
			if n < 0 || pos+n > len(data) {
				return nil, fmt.Errorf("storage: tuple truncated in text value %d", i)
			}
			values = append(values, types.NewText(string(data[pos:pos+n])))
			pos += n
		case types.TagBool:
			if pos >= len(data) {
				return nil, fmt.Errorf("storage: tuple truncated in bool value %d", i)
			}
			values = append(values, types.NewBool(data[pos] != 0))
			pos++
		default:
			return nil, fmt.Errorf("storage: unknown value tag %d at value %d", tag, i)
		}
	}
	if pos != len(data) {
		return nil, fmt.Errorf("storage: %d trailing bytes after tuple", len(data)-pos)
	}
	return values, nil
}

// EncodeKey serializes the values of a key tuple. The format matches
// EncodeRow so equal keys produce equal bytes; the result is usable as a
// map key via string conversion.
func EncodeKey(values []types.Value) (string, error) {
	b, err := EncodeRow(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
