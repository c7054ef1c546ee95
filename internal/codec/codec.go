// Package codec re-encodes decoded images in the format their source file
// extension names. Only JPEG has a quality axis; PNG and GIF are written with
// their default encoder settings whatever quality is passed.
package codec

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
)

// UnsupportedFormatError is returned when no encoder handles an extension.
type UnsupportedFormatError struct {
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format: %s", e.Extension)
}

// Encoder writes an image in one format.
type Encoder interface {
	// Format returns the imaging format written by this encoder.
	Format() imaging.Format

	// Encode writes img to w. Encoders without a quality axis ignore quality.
	Encode(w io.Writer, img image.Image, quality float64) error
}

type jpegEncoder struct{}

func (jpegEncoder) Format() imaging.Format { return imaging.JPEG }

func (jpegEncoder) Encode(w io.Writer, img image.Image, quality float64) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality(quality)))
}

type pngEncoder struct{}

func (pngEncoder) Format() imaging.Format { return imaging.PNG }

func (pngEncoder) Encode(w io.Writer, img image.Image, _ float64) error {
	return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.DefaultCompression))
}

type gifEncoder struct{}

func (gifEncoder) Format() imaging.Format { return imaging.GIF }

func (gifEncoder) Encode(w io.Writer, img image.Image, _ float64) error {
	return imaging.Encode(w, img, imaging.GIF, imaging.GIFNumColors(256))
}

var encoders = map[string]Encoder{
	"jpg":  jpegEncoder{},
	"jpeg": jpegEncoder{},
	"png":  pngEncoder{},
	"gif":  gifEncoder{},
}

// JPEGQuality maps a quality factor in (0, 1] onto the 1-100 scale of the
// JPEG encoder. The factor is scaled, never clamped.
func JPEGQuality(factor float64) int {
	return int(math.Round(factor * 100))
}

// ForExtension returns the encoder for a file extension, with or without the
// leading dot. Matching is case-insensitive.
func ForExtension(ext string) (Encoder, error) {
	key := strings.ToLower(strings.TrimPrefix(ext, "."))
	enc, ok := encoders[key]
	if !ok {
		return nil, &UnsupportedFormatError{Extension: key}
	}
	return enc, nil
}

// IsLossy reports whether the extension names a format with a quality axis.
func IsLossy(ext string) bool {
	enc, err := ForExtension(ext)
	return err == nil && enc.Format() == imaging.JPEG
}

// Encode writes img to w in the format named by ext.
func Encode(w io.Writer, img image.Image, ext string, quality float64) error {
	enc, err := ForExtension(ext)
	if err != nil {
		return err
	}
	return enc.Encode(w, img, quality)
}

// WriteFile encodes img into path on fs, truncating any existing file. A
// failed encode removes path rather than leaving a partial file behind.
func WriteFile(fs afero.Fs, path string, img image.Image, ext string, quality float64) error {
	enc, err := ForExtension(ext)
	if err != nil {
		return err
	}

	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	if err := enc.Encode(f, img, quality); err != nil {
		f.Close()
		fs.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		fs.Remove(path)
		return err
	}
	return nil
}

// Decode reads an image from r. When autoOrient is set the EXIF orientation
// tag of JPEG input is applied to the pixels.
func Decode(r io.Reader, autoOrient bool) (image.Image, error) {
	if autoOrient {
		return imaging.Decode(r, imaging.AutoOrientation(true))
	}
	return imaging.Decode(r)
}
