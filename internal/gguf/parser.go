package gguf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Sanity limits for untrusted input.
const (
	maxArrayLength  = 100_000_000
	maxStringLength = 1 << 20
	maxDimensions   = 8
)

// Parse reads the header, metadata and tensor infos of a GGUF file.
func Parse(r io.Reader) (*File, error) {
	p := &parser{
		r:     r,
		order: binary.LittleEndian,
	}
	return p.parse()
}

// ParseFile parses a GGUF file from disk.
//
//nolint:gosec // G304: path comes from trusted caller, not user input.
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() {
		_ = f.Close() // Ignore close error on read-only file.
	}()

	// Metadata is read in many small pieces.
	file, err := Parse(bufio.NewReaderSize(f, 1<<20))
	if err != nil {
		return nil, err
	}
	file.FilePath = path

	return file, nil
}

type parser struct {
	r     io.Reader
	order binary.ByteOrder
}

func (p *parser) parse() (*File, error) {
	file := &File{
		Metadata: make(map[string]any),
	}

	if err := p.parseHeader(&file.Header); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}

	for i := uint64(0); i < file.Header.MetadataKVCount; i++ {
		kv, err := p.parseMetadataKV()
		if err != nil {
			return nil, fmt.Errorf("parse metadata kv %d: %w", i, err)
		}
		file.Metadata[kv.Key] = kv.Value
	}

	file.TensorInfo = make([]TensorInfo, 0, min(file.Header.TensorCount, 4096))
	for i := uint64(0); i < file.Header.TensorCount; i++ {
		var ti TensorInfo
		if err := p.parseTensorInfo(&ti); err != nil {
			return nil, fmt.Errorf("parse tensor info %d: %w", i, err)
		}
		file.TensorInfo = append(file.TensorInfo, ti)
	}

	return file, nil
}

func (p *parser) read(v any) error {
	return binary.Read(p.r, p.order, v)
}

func (p *parser) parseHeader(h *Header) error {
	if err := p.read(&h.Magic); err != nil {
		return fmt.Errorf("read magic: %w", err)
	}

	switch h.Magic {
	case MagicGGUFLE:
		p.order = binary.LittleEndian
	case MagicGGUFBE:
		p.order = binary.BigEndian
	default:
		return fmt.Errorf("invalid magic: 0x%08X (expected GGUF)", h.Magic)
	}

	if err := p.read(&h.Version); err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	if h.Version < Version1 || h.Version > Version3 {
		return fmt.Errorf("unsupported version: %d (supported: 1-3)", h.Version)
	}

	if err := p.read(&h.TensorCount); err != nil {
		return fmt.Errorf("read tensor count: %w", err)
	}
	if err := p.read(&h.MetadataKVCount); err != nil {
		return fmt.Errorf("read metadata kv count: %w", err)
	}

	return nil
}

func (p *parser) parseMetadataKV() (*MetadataKV, error) {
	key, err := p.readString()
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}

	var valueType uint32
	if err := p.read(&valueType); err != nil {
		return nil, fmt.Errorf("read value type of %q: %w", key, err)
	}

	value, err := p.parseValue(ValueType(valueType))
	if err != nil {
		return nil, fmt.Errorf("read value of %q: %w", key, err)
	}

	return &MetadataKV{Key: key, Value: value}, nil
}

func (p *parser) parseValue(t ValueType) (any, error) {
	switch t {
	case ValueTypeUint8:
		return readScalar[uint8](p)
	case ValueTypeInt8:
		return readScalar[int8](p)
	case ValueTypeUint16:
		return readScalar[uint16](p)
	case ValueTypeInt16:
		return readScalar[int16](p)
	case ValueTypeUint32:
		return readScalar[uint32](p)
	case ValueTypeInt32:
		return readScalar[int32](p)
	case ValueTypeFloat32:
		return readScalar[float32](p)
	case ValueTypeUint64:
		return readScalar[uint64](p)
	case ValueTypeInt64:
		return readScalar[int64](p)
	case ValueTypeFloat64:
		return readScalar[float64](p)
	case ValueTypeBool:
		v, err := readScalar[uint8](p)
		return v != 0, err
	case ValueTypeString:
		return p.readString()
	case ValueTypeArray:
		return p.parseArray()
	default:
		return nil, fmt.Errorf("unknown value type: %d", t)
	}
}

func (p *parser) parseArray() (any, error) {
	var elemType uint32
	if err := p.read(&elemType); err != nil {
		return nil, fmt.Errorf("read array element type: %w", err)
	}

	var length uint64
	if err := p.read(&length); err != nil {
		return nil, fmt.Errorf("read array length: %w", err)
	}
	if length > maxArrayLength {
		return nil, fmt.Errorf("array too large: %d elements", length)
	}

	switch vt := ValueType(elemType); vt {
	case ValueTypeUint8:
		return readSlice[uint8](p, length)
	case ValueTypeInt8:
		return readSlice[int8](p, length)
	case ValueTypeUint16:
		return readSlice[uint16](p, length)
	case ValueTypeInt16:
		return readSlice[int16](p, length)
	case ValueTypeUint32:
		return readSlice[uint32](p, length)
	case ValueTypeInt32:
		return readSlice[int32](p, length)
	case ValueTypeFloat32:
		return readSlice[float32](p, length)
	case ValueTypeUint64:
		return readSlice[uint64](p, length)
	case ValueTypeInt64:
		return readSlice[int64](p, length)
	case ValueTypeFloat64:
		return readSlice[float64](p, length)
	case ValueTypeBool:
		raw, err := readSlice[uint8](p, length)
		if err != nil {
			return nil, err
		}
		arr := make([]bool, len(raw))
		for i, b := range raw {
			arr[i] = b != 0
		}
		return arr, nil
	case ValueTypeString:
		arr := make([]string, length)
		for i := range arr {
			s, err := p.readString()
			if err != nil {
				return nil, fmt.Errorf("read string %d: %w", i, err)
			}
			arr[i] = s
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unsupported array element type: %s", vt)
	}
}

func (p *parser) parseTensorInfo(t *TensorInfo) error {
	name, err := p.readString()
	if err != nil {
		return fmt.Errorf("read tensor name: %w", err)
	}
	t.Name = name

	var ndims uint32
	if err := p.read(&ndims); err != nil {
		return fmt.Errorf("read ndims: %w", err)
	}
	if ndims > maxDimensions {
		return fmt.Errorf("too many dimensions: %d", ndims)
	}

	t.Dimensions, err = readSlice[uint64](p, uint64(ndims))
	if err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}

	if err := p.read(&t.Type); err != nil {
		return fmt.Errorf("read type: %w", err)
	}
	if err := p.read(&t.Offset); err != nil {
		return fmt.Errorf("read offset: %w", err)
	}

	return nil
}

// readString reads a GGUF string (length-prefixed, NOT null-terminated).
func (p *parser) readString() (string, error) {
	var length uint64
	if err := p.read(&length); err != nil {
		return "", fmt.Errorf("read string length: %w", err)
	}
	if length > maxStringLength {
		return "", fmt.Errorf("string too long: %d bytes", length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(p.r, data); err != nil {
		return "", fmt.Errorf("read string data: %w", err)
	}

	return string(data), nil
}

func readScalar[T any](p *parser) (T, error) {
	var v T
	err := p.read(&v)
	return v, err
}

func readSlice[T any](p *parser, length uint64) ([]T, error) {
	arr := make([]T, length)
	if length == 0 {
		return arr, nil
	}
	if err := p.read(arr); err != nil {
		return nil, err
	}
	return arr, nil
}
