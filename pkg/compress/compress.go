// Package compress provides the zstd codec used for stored scan
// payloads. Issue lists compress well and scans are read far more often
// than written, so stored results keep a single, fixed algorithm.
package compress

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Codec compresses and decompresses scan payloads with zstd. The zero
// value is not usable; create one with NewCodec.
type Codec struct {
	encoders sync.Pool
	decoders sync.Pool
}

// NewCodec creates a zstd codec. Level follows the zstd scale; values
// outside it are clamped by the encoder.
func NewCodec(level int) *Codec {
	return &Codec{
		encoders: sync.Pool{
			New: func() any {
				enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
				return enc
			},
		},
		decoders: sync.Pool{
			New: func() any {
				dec, _ := zstd.NewReader(nil)
				return dec
			},
		},
	}
}

// Compress returns the zstd-compressed form of data.
func (c *Codec) Compress(data []byte) ([]byte, error) {
	enc := c.encoders.Get().(*zstd.Encoder)
	defer c.encoders.Put(enc)

	var buf bytes.Buffer
	enc.Reset(&buf)

	if _, err := enc.Write(data); err != nil {
		return nil, fmt.Errorf("zstd write: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("zstd close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func (c *Codec) Decompress(data []byte) ([]byte, error) {
	dec := c.decoders.Get().(*zstd.Decoder)
	defer c.decoders.Put(dec)

	if err := dec.Reset(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("zstd reset: %w", err)
	}
	result, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return result, nil
}

// Default is the codec used by the scan store.
var Default = NewCodec(3)
