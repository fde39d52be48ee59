// internal/snapshot/codec.go
package snapshot

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"scenestate/internal/document"
)

// Codec compresses document trees for packed snapshots. EncodeAll and
// DecodeAll are safe for concurrent use, so one Codec serves a session.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCodec creates a codec at the given zstd compression level.
func NewCodec(level int) (*Codec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Codec{encoder: encoder, decoder: decoder}, nil
}

// Encode serializes and compresses a document.
func (c *Codec) Encode(d *document.Document) ([]byte, error) {
	data, err := d.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return c.encoder.EncodeAll(data, nil), nil
}

// Decode reverses Encode.
func (c *Codec) Decode(compressed []byte) (*document.Document, error) {
	data, err := c.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress document: %w", err)
	}
	return document.FromJSON(data)
}

// Close releases the encoder and decoder.
func (c *Codec) Close() {
	c.encoder.Close()
	c.decoder.Close()
}
