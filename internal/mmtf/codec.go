package mmtf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Codec identifies a columnar encoding strategy.
type Codec int32

// Encoding strategies defined by the MMTF 1.0 format.
const (
	CodecFloat32            Codec = 1
	CodecInt8               Codec = 2
	CodecInt16              Codec = 3
	CodecInt32              Codec = 4
	CodecString             Codec = 5
	CodecRunLengthChar      Codec = 6
	CodecRunLengthInt       Codec = 7
	CodecDeltaRunLengthInt  Codec = 8
	CodecRunLengthFloat     Codec = 9
	CodecDeltaRecursiveF    Codec = 10
	CodecInt16Float         Codec = 11
	CodecRecursiveInt16F    Codec = 12
	CodecRecursiveInt8F     Codec = 13
	CodecRecursiveInt16     Codec = 14
	CodecRecursiveInt8      Codec = 15
	headerSize                    = 12
	maxDeclaredLength             = 1 << 28
	recursiveInt16Max             = math.MaxInt16
	recursiveInt16Min             = math.MinInt16
	recursiveInt8Max              = math.MaxInt8
	recursiveInt8Min              = math.MinInt8
)

// Header is the 12-byte prefix of every binary column.
type Header struct {
	Codec  Codec
	Length int32
	Param  int32
}

var (
	errShortHeader   = errors.New("column shorter than its 12-byte header")
	errPayloadLength = errors.New("payload length is not a multiple of the element width")
)

func parseHeader(b []byte) (Header, []byte, error) {
	if len(b) < headerSize {
		return Header{}, nil, errShortHeader
	}
	h := Header{
		Codec:  Codec(int32(binary.BigEndian.Uint32(b[0:4]))),
		Length: int32(binary.BigEndian.Uint32(b[4:8])),
		Param:  int32(binary.BigEndian.Uint32(b[8:12])),
	}
	if h.Length < 0 || h.Length > maxDeclaredLength {
		return h, nil, fmt.Errorf("declared length %d out of range", h.Length)
	}
	return h, b[headerSize:], nil
}

func appendHeader(dst []byte, h Header) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(h.Codec))
	dst = binary.BigEndian.AppendUint32(dst, uint32(h.Length))
	return binary.BigEndian.AppendUint32(dst, uint32(h.Param))
}

// ==================== Packed primitives ====================

func unpackInt8(b []byte) []int32 {
	out := make([]int32, len(b))
	for i, v := range b {
		out[i] = int32(int8(v))
	}
	return out
}

func unpackInt16(b []byte) ([]int32, error) {
	if len(b)%2 != 0 {
		return nil, errPayloadLength
	}
	out := make([]int32, len(b)/2)
	for i := range out {
		out[i] = int32(int16(binary.BigEndian.Uint16(b[2*i:])))
	}
	return out, nil
}

func unpackInt32(b []byte) ([]int32, error) {
	if len(b)%4 != 0 {
		return nil, errPayloadLength
	}
	out := make([]int32, len(b)/4)
	for i := range out {
		out[i] = int32(binary.BigEndian.Uint32(b[4*i:]))
	}
	return out, nil
}

func unpackFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, errPayloadLength
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.BigEndian.Uint32(b[4*i:]))
	}
	return out, nil
}

func packInt8(dst []byte, vals []int32) ([]byte, error) {
	for _, v := range vals {
		if v < math.MinInt8 || v > math.MaxInt8 {
			return nil, fmt.Errorf("value %d does not fit in int8", v)
		}
		dst = append(dst, byte(int8(v)))
	}
	return dst, nil
}

func packInt16(dst []byte, vals []int32) ([]byte, error) {
	for _, v := range vals {
		if v < math.MinInt16 || v > math.MaxInt16 {
			return nil, fmt.Errorf("value %d does not fit in int16", v)
		}
		dst = binary.BigEndian.AppendUint16(dst, uint16(int16(v)))
	}
	return dst, nil
}

func packInt32(dst []byte, vals []int32) []byte {
	for _, v := range vals {
		dst = binary.BigEndian.AppendUint32(dst, uint32(v))
	}
	return dst
}

// ==================== Transforms ====================

// RunLengthDecode expands (value, count) pairs. The expansion is bounded
// by limit so a corrupt count cannot allocate without bound.
func RunLengthDecode(pairs []int32, limit int) ([]int32, error) {
	if len(pairs)%2 != 0 {
		return nil, errors.New("run-length input has an odd number of values")
	}
	out := make([]int32, 0, min(limit, 1<<16))
	for i := 0; i < len(pairs); i += 2 {
		v, n := pairs[i], int(pairs[i+1])
		if n < 0 {
			return nil, fmt.Errorf("negative run length %d", n)
		}
		if len(out)+n > limit {
			return nil, fmt.Errorf("run-length expansion exceeds declared length %d", limit)
		}
		for j := 0; j < n; j++ {
			out = append(out, v)
		}
	}
	return out, nil
}

// RunLengthEncode is the inverse of RunLengthDecode.
func RunLengthEncode(vals []int32) []int32 {
	var out []int32
	for i := 0; i < len(vals); {
		j := i + 1
		for j < len(vals) && vals[j] == vals[i] {
			j++
		}
		out = append(out, vals[i], int32(j-i))
		i = j
	}
	return out
}

// DeltaDecode replaces each value with the cumulative sum up to it.
func DeltaDecode(vals []int32) []int32 {
	out := make([]int32, len(vals))
	var acc int32
	for i, v := range vals {
		acc += v
		out[i] = acc
	}
	return out
}

// DeltaEncode is the inverse of DeltaDecode.
func DeltaEncode(vals []int32) []int32 {
	out := make([]int32, len(vals))
	var prev int32
	for i, v := range vals {
		out[i] = v - prev
		prev = v
	}
	return out
}

// RecursiveIndexDecode sums runs of values that sit at the packed type's
// bounds, so that large values survive packing into a narrow type.
func RecursiveIndexDecode(vals []int32, lo, hi int32, limit int) ([]int32, error) {
	out := make([]int32, 0, min(limit, len(vals)))
	var acc int32
	for _, v := range vals {
		acc += v
		if v == hi || v == lo {
			continue
		}
		if len(out) == limit {
			return nil, fmt.Errorf("recursive index expansion exceeds declared length %d", limit)
		}
		out = append(out, acc)
		acc = 0
	}
	if acc != 0 {
		return nil, errors.New("recursive index input ends inside a continuation run")
	}
	return out, nil
}

// RecursiveIndexEncode is the inverse of RecursiveIndexDecode.
func RecursiveIndexEncode(vals []int32, lo, hi int32) []int32 {
	var out []int32
	for _, v := range vals {
		if v >= 0 {
			for v >= hi {
				out = append(out, hi)
				v -= hi
			}
		} else {
			for v <= lo {
				out = append(out, lo)
				v -= lo
			}
		}
		out = append(out, v)
	}
	return out
}

// IntToFloat divides every value by divisor.
func IntToFloat(vals []int32, divisor float64) []float32 {
	out := make([]float32, len(vals))
	for i, v := range vals {
		out[i] = float32(float64(v) / divisor)
	}
	return out
}

// FloatToInt multiplies every value by divisor and rounds.
func FloatToInt(vals []float32, divisor float64) []int32 {
	out := make([]int32, len(vals))
	for i, v := range vals {
		out[i] = int32(math.Round(float64(v) * divisor))
	}
	return out
}

// ==================== Column decoding ====================

func checkLength(h Header, n int) error {
	if n != int(h.Length) {
		return fmt.Errorf("decoded %d values, header declares %d", n, h.Length)
	}
	return nil
}

// DecodeInts decodes an integer column (codecs 2, 3, 4, 7, 8, 14, 15).
func DecodeInts(b []byte) ([]int32, Header, error) {
	h, payload, err := parseHeader(b)
	if err != nil {
		return nil, h, err
	}
	var out []int32
	switch h.Codec {
	case CodecInt8:
		out = unpackInt8(payload)
	case CodecInt16:
		out, err = unpackInt16(payload)
	case CodecInt32:
		out, err = unpackInt32(payload)
	case CodecRunLengthInt, CodecDeltaRunLengthInt:
		var pairs []int32
		if pairs, err = unpackInt32(payload); err == nil {
			out, err = RunLengthDecode(pairs, int(h.Length))
		}
		if err == nil && h.Codec == CodecDeltaRunLengthInt {
			out = DeltaDecode(out)
		}
	case CodecRecursiveInt16:
		var packed []int32
		if packed, err = unpackInt16(payload); err == nil {
			out, err = RecursiveIndexDecode(packed, recursiveInt16Min, recursiveInt16Max, int(h.Length))
		}
	case CodecRecursiveInt8:
		out, err = RecursiveIndexDecode(unpackInt8(payload), recursiveInt8Min, recursiveInt8Max, int(h.Length))
	default:
		return nil, h, fmt.Errorf("codec %d does not produce integers", h.Codec)
	}
	if err != nil {
		return nil, h, err
	}
	return out, h, checkLength(h, len(out))
}

// DecodeFloats decodes a float column (codecs 1, 9, 10, 11, 12, 13).
// If divisor is positive it replaces the divisor declared in the header.
func DecodeFloats(b []byte, divisor float64) ([]float32, Header, error) {
	h, payload, err := parseHeader(b)
	if err != nil {
		return nil, h, err
	}
	if h.Codec == CodecFloat32 {
		out, err := unpackFloat32(payload)
		if err != nil {
			return nil, h, err
		}
		return out, h, checkLength(h, len(out))
	}
	if divisor <= 0 {
		divisor = float64(h.Param)
	}
	if divisor <= 0 {
		return nil, h, fmt.Errorf("codec %d needs a positive divisor, header declares %d", h.Codec, h.Param)
	}
	var ints []int32
	switch h.Codec {
	case CodecRunLengthFloat:
		var pairs []int32
		if pairs, err = unpackInt32(payload); err == nil {
			ints, err = RunLengthDecode(pairs, int(h.Length))
		}
	case CodecDeltaRecursiveF, CodecRecursiveInt16F:
		var packed []int32
		if packed, err = unpackInt16(payload); err == nil {
			ints, err = RecursiveIndexDecode(packed, recursiveInt16Min, recursiveInt16Max, int(h.Length))
		}
		if err == nil && h.Codec == CodecDeltaRecursiveF {
			ints = DeltaDecode(ints)
		}
	case CodecInt16Float:
		ints, err = unpackInt16(payload)
	case CodecRecursiveInt8F:
		ints, err = RecursiveIndexDecode(unpackInt8(payload), recursiveInt8Min, recursiveInt8Max, int(h.Length))
	default:
		return nil, h, fmt.Errorf("codec %d does not produce floats", h.Codec)
	}
	if err != nil {
		return nil, h, err
	}
	if err := checkLength(h, len(ints)); err != nil {
		return nil, h, err
	}
	return IntToFloat(ints, divisor), h, nil
}

// DecodeStrings decodes a string column (codecs 5 and 6).
func DecodeStrings(b []byte) ([]string, Header, error) {
	h, payload, err := parseHeader(b)
	if err != nil {
		return nil, h, err
	}
	var out []string
	switch h.Codec {
	case CodecString:
		width := int(h.Param)
		if width <= 0 {
			return nil, h, fmt.Errorf("string width %d must be positive", width)
		}
		if len(payload)%width != 0 {
			return nil, h, errPayloadLength
		}
		out = make([]string, len(payload)/width)
		for i := range out {
			out[i] = trimNul(payload[i*width : (i+1)*width])
		}
	case CodecRunLengthChar:
		var pairs, chars []int32
		if pairs, err = unpackInt32(payload); err != nil {
			return nil, h, err
		}
		if chars, err = RunLengthDecode(pairs, int(h.Length)); err != nil {
			return nil, h, err
		}
		out = make([]string, len(chars))
		for i, c := range chars {
			if c < 0 || c > math.MaxUint8 {
				return nil, h, fmt.Errorf("character code %d out of range", c)
			}
			if c != 0 {
				out[i] = string(rune(byte(c)))
			}
		}
	default:
		return nil, h, fmt.Errorf("codec %d does not produce strings", h.Codec)
	}
	return out, h, checkLength(h, len(out))
}

func trimNul(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// ==================== Column encoding ====================

// EncodeInts packs an integer column with the given codec.
func EncodeInts(codec Codec, vals []int32) ([]byte, error) {
	out := appendHeader(make([]byte, 0, headerSize+4*len(vals)), Header{Codec: codec, Length: int32(len(vals))})
	var err error
	switch codec {
	case CodecInt8:
		out, err = packInt8(out, vals)
	case CodecInt16:
		out, err = packInt16(out, vals)
	case CodecInt32:
		out = packInt32(out, vals)
	case CodecRunLengthInt:
		out = packInt32(out, RunLengthEncode(vals))
	case CodecDeltaRunLengthInt:
		out = packInt32(out, RunLengthEncode(DeltaEncode(vals)))
	case CodecRecursiveInt16:
		out, err = packInt16(out, RecursiveIndexEncode(vals, recursiveInt16Min, recursiveInt16Max))
	case CodecRecursiveInt8:
		out, err = packInt8(out, RecursiveIndexEncode(vals, recursiveInt8Min, recursiveInt8Max))
	default:
		return nil, fmt.Errorf("codec %d does not encode integers", codec)
	}
	return out, err
}

// EncodeFloats packs a float column with the given codec and divisor.
// The divisor is ignored for CodecFloat32.
func EncodeFloats(codec Codec, vals []float32, divisor int32) ([]byte, error) {
	h := Header{Codec: codec, Length: int32(len(vals)), Param: divisor}
	out := appendHeader(make([]byte, 0, headerSize+4*len(vals)), h)
	if codec == CodecFloat32 {
		for _, v := range vals {
			out = binary.BigEndian.AppendUint32(out, math.Float32bits(v))
		}
		return out, nil
	}
	if divisor <= 0 {
		return nil, fmt.Errorf("codec %d needs a positive divisor", codec)
	}
	ints := FloatToInt(vals, float64(divisor))
	var err error
	switch codec {
	case CodecRunLengthFloat:
		out = packInt32(out, RunLengthEncode(ints))
	case CodecDeltaRecursiveF:
		out, err = packInt16(out, RecursiveIndexEncode(DeltaEncode(ints), recursiveInt16Min, recursiveInt16Max))
	case CodecInt16Float:
		out, err = packInt16(out, ints)
	case CodecRecursiveInt16F:
		out, err = packInt16(out, RecursiveIndexEncode(ints, recursiveInt16Min, recursiveInt16Max))
	case CodecRecursiveInt8F:
		out, err = packInt8(out, RecursiveIndexEncode(ints, recursiveInt8Min, recursiveInt8Max))
	default:
		return nil, fmt.Errorf("codec %d does not encode floats", codec)
	}
	return out, err
}

// EncodeStrings packs a string column. For CodecString, width is the
// fixed per-entry width; for CodecRunLengthChar every string must be
// empty or a single byte.
func EncodeStrings(codec Codec, vals []string, width int) ([]byte, error) {
	switch codec {
	case CodecString:
		if width <= 0 {
			return nil, fmt.Errorf("string width %d must be positive", width)
		}
		out := appendHeader(make([]byte, 0, headerSize+width*len(vals)),
			Header{Codec: codec, Length: int32(len(vals)), Param: int32(width)})
		for _, s := range vals {
			if len(s) > width {
				return nil, fmt.Errorf("string %q longer than width %d", s, width)
			}
			out = append(out, s...)
			for i := len(s); i < width; i++ {
				out = append(out, 0)
			}
		}
		return out, nil
	case CodecRunLengthChar:
		chars := make([]int32, len(vals))
		for i, s := range vals {
			switch len(s) {
			case 0:
			case 1:
				chars[i] = int32(s[0])
			default:
				return nil, fmt.Errorf("run-length char column got %q", s)
			}
		}
		out := appendHeader(nil, Header{Codec: codec, Length: int32(len(vals))})
		return packInt32(out, RunLengthEncode(chars)), nil
	default:
		return nil, fmt.Errorf("codec %d does not encode strings", codec)
	}
}
