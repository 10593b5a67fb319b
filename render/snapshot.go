package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"
)

// Snapshot is one visual capture of a page: the grayscale JPEG bytes,
// their base64 form for the model call, and the path the bytes were
// persisted to. A snapshot has no identity beyond "most recent"; the
// next capture overwrites the file.
type Snapshot struct {
	Path   string
	Base64 string
	Bytes  []byte
	Width  int
	Height int
}

// compressGray decodes a JPEG, reduces it to grayscale, clamps its
// width when maxWidth is set, and re-encodes at the given quality.
// Grayscale plus recompression shrinks the payload the vision model has
// to ingest without losing the link borders.
func compressGray(src []byte, quality, maxWidth int) ([]byte, int, int, error) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("render: decode capture: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if maxWidth > 0 && w > maxWidth {
		h = h * maxWidth / w
		w = maxWidth
	}

	gray := image.NewGray(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(gray, gray.Bounds(), img, bounds, xdraw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gray, &jpeg.Options{Quality: quality}); err != nil {
		return nil, 0, 0, fmt.Errorf("render: encode grayscale: %w", err)
	}
	return buf.Bytes(), w, h, nil
}

// writeSnapshot persists bytes to path, overwriting any prior capture,
// and returns the assembled Snapshot. The file is a debug artifact;
// success is reported by the return value, never by the file's
// existence.
func writeSnapshot(path string, data []byte, w, h int) (*Snapshot, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("render: snapshot dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("render: write snapshot: %w", err)
	}
	return &Snapshot{
		Path:   path,
		Base64: base64.StdEncoding.EncodeToString(data),
		Bytes:  data,
		Width:  w,
		Height: h,
	}, nil
}
