package bcache

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
)

// compressor is the out-of-scope compression collaborator §1 and §6
// describe: a zlib-wrapped deflate stream at level 6, round-trippable
// byte-for-byte. Modeled on the Compressor/Decompressor interface split in
// arloliu-mebo's compress package.
type compressor interface {
	compress(data []byte) ([]byte, error)
	decompress(data []byte) ([]byte, error)
}

// compressionLevel is fixed at 6 per §6 ("zlib-wrapped deflate at
// compression level 6").
const compressionLevel = 6

// zlibCompressor implements compressor using klauspost/compress's
// zlib-compatible codec (a drop-in for compress/zlib with better
// performance; same wire format).
type zlibCompressor struct{}

func newZlibCompressor() zlibCompressor { return zlibCompressor{} }

func (zlibCompressor) compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	w, err := zlib.NewWriterLevel(&buf, compressionLevel)
	if err != nil {
		return nil, wrapCodecError("create zlib writer", err)
	}

	if _, err := w.Write(data); err != nil {
		return nil, wrapCodecError("compress", err)
	}

	if err := w.Close(); err != nil {
		return nil, wrapCodecError("flush zlib writer", err)
	}

	return buf.Bytes(), nil
}

func (zlibCompressor) decompress(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, wrapCodecError("create zlib reader", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, wrapCodecError("decompress", err)
	}

	return out, nil
}
