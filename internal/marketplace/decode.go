package marketplace

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

const maxBodyBytes = 10 << 20

// decodeBody undoes the Content-Encoding of a response body.
// Encodings are listed in the order they were applied, so they are removed in reverse.
func decodeBody(contentEncoding string, body []byte) ([]byte, error) {
	encodings := strings.Split(contentEncoding, ",")
	for i := len(encodings) - 1; i >= 0; i-- {
		enc := strings.ToLower(strings.TrimSpace(encodings[i]))
		var err error
		switch enc {
		case "", "identity":
			continue
		case "br":
			body, err = readAll(brotli.NewReader(bytes.NewReader(body)))
		case "gzip", "x-gzip":
			body, err = gunzip(body)
		case "deflate":
			body, err = inflate(body)
		default:
			return nil, fmt.Errorf("unsupported content encoding %q", enc)
		}
		if err != nil {
			return nil, fmt.Errorf("error decoding %s body: %w", enc, err)
		}
	}
	return body, nil
}

func gunzip(body []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readAll(r)
}

// inflate accepts both zlib-wrapped and raw deflate streams
func inflate(body []byte) ([]byte, error) {
	if r, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
		defer r.Close()
		return readAll(r)
	}
	r := flate.NewReader(bytes.NewReader(body))
	defer r.Close()
	return readAll(r)
}

func readAll(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBodyBytes))
}
