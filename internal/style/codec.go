package style

// codec.go serializes styles as self-describing JSON blobs, optionally inside
// a Zstandard frame for persistence at rest. The schema version travels in the
// blob itself so a consumer can reject unsupported versions before use.

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Encode marshals the style to its canonical JSON form.
func Encode(s *Style) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode style: %w", err)
	}
	return data, nil
}

// Decode parses a JSON style blob. The schema version is probed first and an
// unsupported version fails with ErrVersionMismatch before any rule is read.
func Decode(data []byte) (*Style, error) {
	var probe struct {
		Version int `json:"schemaVersion"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode style: %w", err)
	}
	if probe.Version != SchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, probe.Version, SchemaVersion)
	}

	var s Style
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode style: %w", err)
	}
	return &s, nil
}

// EncodeCompressed wraps the JSON blob in a Zstandard frame for storage.
func EncodeCompressed(s *Style) ([]byte, error) {
	raw, err := Encode(s)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}

// DecodeCompressed reverses EncodeCompressed.
func DecodeCompressed(data []byte) (*Style, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress style: %w", err)
	}
	return Decode(raw)
}
