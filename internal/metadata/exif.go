// Package metadata reads EXIF from source images and, when asked, carries a
// small set of tags over to their compressed copies. Re-encoding through the
// codec always drops the original metadata.
package metadata

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// Summary holds the EXIF fields worth showing for a source image.
type Summary struct {
	Make        string
	Model       string
	Software    string
	Orientation int
	DateTime    *time.Time
}

// ReadEXIF decodes EXIF from r.
func ReadEXIF(r io.Reader) (*Summary, error) {
	x, err := exif.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF: %w", err)
	}

	s := &Summary{
		Make:     stringTag(x, exif.Make),
		Model:    stringTag(x, exif.Model),
		Software: stringTag(x, exif.Software),
	}

	if tag, err := x.Get(exif.Orientation); err == nil {
		if v, err := tag.Int(0); err == nil {
			s.Orientation = v
		}
	}

	if tm, err := x.DateTime(); err == nil {
		s.DateTime = &tm
	}

	return s, nil
}

// ReadEXIFFile opens path and decodes its EXIF.
func ReadEXIFFile(path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return ReadEXIF(f)
}

// HasEXIF reports whether r carries decodable EXIF data.
func HasEXIF(r io.Reader) bool {
	_, err := exif.Decode(r)
	return err == nil
}

func stringTag(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	v, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return v
}
