package readings

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"fieldmap/internal/types"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Decompress sniffs the first bytes of r and returns a reader that yields
// the plain content for gzip, zstd or uncompressed input.
func Decompress(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("peek reading stream: %w", err)
	}

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		return zr, nil
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("open zstd stream: %w", err)
		}
		return zstdReadCloser{zr}, nil
	default:
		return io.NopCloser(br), nil
	}
}

// zstd.Decoder.Close has no error result.
type zstdReadCloser struct{ *zstd.Decoder }

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// DecodeStream decompresses r if needed and decodes the reading table.
func DecodeStream(r io.Reader) ([]types.SensorReading, error) {
	rc, err := Decompress(r)
	if err != nil {
		return nil, sourceError(err.Error(), err, nil)
	}
	defer rc.Close()
	return Decode(rc)
}
