package kvstore

import (
	"fmt"

	"github.com/ugorji/go/codec"
)

const (
	// Values below this size are stored uncompressed; headers dominate the
	// savings on tiny rows.
	minCompressionSize = 128

	flagRaw        = 0
	flagCompressed = 1
)

// rowCodec encodes rows as msgpack behind a one-byte compression flag.
// Compressed form is kept only when it actually saves more than 10%.
type rowCodec struct {
	handle     codec.MsgpackHandle
	compressor Compressor
}

func newRowCodec(compressorName string) (*rowCodec, error) {
	compressor, err := GetCompressor(compressorName)
	if err != nil {
		return nil, err
	}
	return &rowCodec{compressor: compressor}, nil
}

func (c *rowCodec) encode(v interface{}) ([]byte, error) {
	var raw []byte
	if err := codec.NewEncoderBytes(&raw, &c.handle).Encode(v); err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}

	if len(raw) > minCompressionSize && c.compressor.Name() != "none" {
		compressed, err := c.compressor.Compress(raw)
		if err == nil && len(compressed) > 0 && len(compressed) < len(raw)*9/10 {
			out := make([]byte, 1+len(compressed))
			out[0] = flagCompressed
			copy(out[1:], compressed)
			return out, nil
		}
	}

	out := make([]byte, 1+len(raw))
	out[0] = flagRaw
	copy(out[1:], raw)
	return out, nil
}

func (c *rowCodec) decode(data []byte, v interface{}) error {
	if len(data) < 1 {
		return fmt.Errorf("decode row: value too short")
	}

	payload := data[1:]
	switch data[0] {
	case flagRaw:
	case flagCompressed:
		decompressed, err := c.compressor.Decompress(payload)
		if err != nil {
			return fmt.Errorf("decode row: %w", err)
		}
		payload = decompressed
	default:
		return fmt.Errorf("decode row: unknown compression flag %d", data[0])
	}

	if err := codec.NewDecoderBytes(payload, &c.handle).Decode(v); err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	return nil
}
