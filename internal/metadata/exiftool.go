package metadata

import (
	"fmt"
	"sync"

	"github.com/barasher/go-exiftool"
)

// CarriedTags are copied from a source image to its compressed copy.
var CarriedTags = []string{
	"Make",
	"Model",
	"LensModel",
	"DateTimeOriginal",
	"CreateDate",
	"ModifyDate",
	"Orientation",
	"Artist",
	"Copyright",
	"ExposureTime",
	"FNumber",
	"ISO",
	"FocalLength",
	"GPSLatitude",
	"GPSLatitudeRef",
	"GPSLongitude",
	"GPSLongitudeRef",
	"GPSAltitude",
}

// ExiftoolCopier copies CarriedTags with a long-running exiftool process.
// It requires the exiftool binary on PATH.
type ExiftoolCopier struct {
	et   *exiftool.Exiftool
	mu   sync.Mutex
	tags []string
}

// NewExiftoolCopier starts exiftool. autoOriented must be set when outputs
// were decoded with the EXIF orientation already applied to the pixels.
func NewExiftoolCopier(autoOriented bool) (*ExiftoolCopier, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}
	return &ExiftoolCopier{et: et, tags: TagsToCarry(autoOriented)}, nil
}

// TagsToCarry returns CarriedTags, without Orientation when the pixels of the
// output are already upright.
func TagsToCarry(autoOriented bool) []string {
	if !autoOriented {
		return CarriedTags
	}
	tags := make([]string, 0, len(CarriedTags))
	for _, tag := range CarriedTags {
		if tag != "Orientation" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// CopyMetadata writes the carried tags of src into dst. Tags absent from src
// are left untouched.
func (c *ExiftoolCopier) CopyMetadata(src, dst string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	extracted := c.et.ExtractMetadata(src)
	if len(extracted) == 0 {
		return fmt.Errorf("exiftool returned no metadata for %s", src)
	}
	if extracted[0].Err != nil {
		return fmt.Errorf("extract metadata: %w", extracted[0].Err)
	}

	out := exiftool.EmptyFileMetadata()
	out.File = dst
	n := 0
	for _, tag := range c.tags {
		v, err := extracted[0].GetString(tag)
		if err != nil || v == "" {
			continue
		}
		out.SetString(tag, v)
		n++
	}
	if n == 0 {
		return nil
	}

	written := []exiftool.FileMetadata{out}
	c.et.WriteMetadata(written)
	if written[0].Err != nil {
		return fmt.Errorf("write metadata: %w", written[0].Err)
	}
	return nil
}

// Close stops the exiftool process.
func (c *ExiftoolCopier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.et.Close()
}
