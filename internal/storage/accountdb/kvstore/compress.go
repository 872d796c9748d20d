package kvstore

import (
	"fmt"
	"sync"

	"github.com/pierrec/lz4"
)

// Compressor defines the interface for value compression algorithms.
type Compressor interface {
	// Name returns the name of the compression algorithm.
	Name() string

	// Compress compresses the input data.
	Compress(data []byte) ([]byte, error)

	// Decompress decompresses the input data.
	Decompress(data []byte) ([]byte, error)
}

// CompressorFactory is a function that creates a new compressor instance.
type CompressorFactory func() Compressor

var (
	compressorMu sync.RWMutex
	compressors  = make(map[string]CompressorFactory)
)

// RegisterCompressor registers a compressor factory under the given name.
func RegisterCompressor(name string, factory CompressorFactory) {
	compressorMu.Lock()
	defer compressorMu.Unlock()
	compressors[name] = factory
}

// GetCompressor returns a new compressor instance for the given name.
func GetCompressor(name string) (Compressor, error) {
	compressorMu.RLock()
	factory, ok := compressors[name]
	compressorMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown compressor: %s", name)
	}

	return factory(), nil
}

// AvailableCompressors returns the registered compressor names.
func AvailableCompressors() []string {
	compressorMu.RLock()
	defer compressorMu.RUnlock()

	names := make([]string, 0, len(compressors))
	for name := range compressors {
		names = append(names, name)
	}
	return names
}

func init() {
	RegisterCompressor("none", func() Compressor { return &NoCompressor{} })
	RegisterCompressor("lz4", func() Compressor { return &LZ4Compressor{} })
}

// NoCompressor is a pass-through compressor.
type NoCompressor struct{}

func (c *NoCompressor) Name() string { return "none" }

func (c *NoCompressor) Compress(data []byte) ([]byte, error) {
	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

func (c *NoCompressor) Decompress(data []byte) ([]byte, error) {
	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

// LZ4Compressor compresses values with LZ4 block compression.
type LZ4Compressor struct{}

func (c *LZ4Compressor) Name() string { return "lz4" }

func (c *LZ4Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}

	compressed := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compression failed: %w", err)
	}

	return compressed[:n], nil
}

func (c *LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}

	// Block size is not stored; try growing buffers.
	for bufferSize := len(data) * 2; bufferSize <= len(data)*16; bufferSize *= 2 {
		decompressed := make([]byte, bufferSize)
		n, err := lz4.UncompressBlock(data, decompressed)
		if err == nil {
			return decompressed[:n], nil
		}
	}
	return nil, fmt.Errorf("lz4 decompression failed after multiple attempts")
}
