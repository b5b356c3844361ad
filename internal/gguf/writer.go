package gguf

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Write encodes a metadata-only GGUF v3 file (no tensors) in little-endian order.
//
// Supported values: string, bool, uint8, uint32, int32, uint64, float32 and slices of
// string, uint32, int32 and float32.
func Write(w io.Writer, metadata []MetadataKV) error {
	ew := &errWriter{w: w}

	ew.write(MagicGGUFLE)
	ew.write(Version3)
	ew.write(uint64(0))
	ew.write(uint64(len(metadata)))

	for _, kv := range metadata {
		ew.writeString(kv.Key)
		if err := ew.writeValue(kv.Value); err != nil {
			return fmt.Errorf("write %q: %w", kv.Key, err)
		}
	}

	return ew.err
}

// WriteFile writes a metadata-only GGUF file to disk.
func WriteFile(path string, metadata []MetadataKV) error {
	f, err := os.Create(path) //nolint:gosec // G304: path comes from trusted caller.
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	if err := Write(f, metadata); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) write(v any) {
	if e.err != nil {
		return
	}
	e.err = binary.Write(e.w, binary.LittleEndian, v)
}

func (e *errWriter) writeString(s string) {
	e.write(uint64(len(s)))
	if e.err != nil {
		return
	}
	_, e.err = io.WriteString(e.w, s)
}

func (e *errWriter) writeValue(v any) error {
	switch x := v.(type) {
	case string:
		e.write(uint32(ValueTypeString))
		e.writeString(x)
	case bool:
		e.write(uint32(ValueTypeBool))
		e.write(x)
	case uint8:
		e.write(uint32(ValueTypeUint8))
		e.write(x)
	case uint32:
		e.write(uint32(ValueTypeUint32))
		e.write(x)
	case int32:
		e.write(uint32(ValueTypeInt32))
		e.write(x)
	case uint64:
		e.write(uint32(ValueTypeUint64))
		e.write(x)
	case float32:
		e.write(uint32(ValueTypeFloat32))
		e.write(x)
	case []string:
		e.writeArrayHeader(ValueTypeString, len(x))
		for _, s := range x {
			e.writeString(s)
		}
	case []uint32:
		e.writeArrayHeader(ValueTypeUint32, len(x))
		e.write(x)
	case []int32:
		e.writeArrayHeader(ValueTypeInt32, len(x))
		e.write(x)
	case []float32:
		e.writeArrayHeader(ValueTypeFloat32, len(x))
		e.write(x)
	default:
		return fmt.Errorf("unsupported metadata value type %T", v)
	}
	return e.err
}

func (e *errWriter) writeArrayHeader(elem ValueType, n int) {
	e.write(uint32(ValueTypeArray))
	e.write(uint32(elem))
	e.write(uint64(n))
}
