// Package imageinfo reads pixel dimensions straight from PNG and JPEG headers.
//
// Dimensions are advisory: every failure yields the zero value instead of an error.
package imageinfo

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
)

// Dimensions is an image size in pixels. The zero value means unknown.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Known reports whether both dimensions were determined
func (d Dimensions) Known() bool {
	return d.Width > 0 && d.Height > 0
}

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// maxScan bounds how much of a file is read when looking for a JPEG frame header
const maxScan = 16 << 20

// ReadDimensions returns the dimensions of the image at path, or the zero value
func ReadDimensions(path string) Dimensions {
	f, err := os.Open(path)
	if err != nil {
		return Dimensions{}
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxScan))
	if err != nil {
		return Dimensions{}
	}
	return Parse(data)
}

// Parse returns the dimensions encoded in data, or the zero value
func Parse(data []byte) Dimensions {
	if d, ok := parsePNG(data); ok {
		return d
	}
	if d, ok := parseJPEG(data); ok {
		return d
	}
	return Dimensions{}
}

// parsePNG reads the IHDR fields, which the format requires to be the first chunk
func parsePNG(data []byte) (Dimensions, bool) {
	if len(data) < 24 || !bytes.Equal(data[:8], pngSignature) {
		return Dimensions{}, false
	}
	w := binary.BigEndian.Uint32(data[16:20])
	h := binary.BigEndian.Uint32(data[20:24])
	// the format caps both at 2^31-1; larger values would overflow a 32-bit int
	if w > math.MaxInt32 || h > math.MaxInt32 {
		return Dimensions{}, true
	}
	return Dimensions{Width: int(w), Height: int(h)}, true
}

// parseJPEG scans for the baseline SOF0 marker. Its payload is a 2-byte
// length, 1-byte precision, then height and width as big-endian uint16.
func parseJPEG(data []byte) (Dimensions, bool) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return Dimensions{}, false
	}
	for i := 2; i+1 < len(data); i++ {
		if data[i] != 0xFF || data[i+1] != 0xC0 {
			continue
		}
		p := i + 2 + 2 + 1
		if p+4 > len(data) {
			return Dimensions{}, false
		}
		h := binary.BigEndian.Uint16(data[p : p+2])
		w := binary.BigEndian.Uint16(data[p+2 : p+4])
		return Dimensions{Width: int(w), Height: int(h)}, true
	}
	return Dimensions{}, false
}
