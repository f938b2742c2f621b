package compress

import (
	"bytes"
	"compress/gzip"
	"io"
)

// GZip compresses stored documents with gzip at the default level.
type GZip struct {
	level int
}

// NewGZip creates a gzip codec.
func NewGZip() GZip {
	return GZip{level: gzip.DefaultCompression}
}

func (g GZip) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, g.level)
	if err != nil {
		return nil, err
	}
	if _, err = w.Write(data); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (g GZip) Decode(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}
