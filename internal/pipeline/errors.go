package pipeline

import (
	"fmt"

	"image-compressor-go/internal/codec"
)

// DirectoryRole names which side of a request a directory belongs to.
type DirectoryRole string

const (
	RoleInput  DirectoryRole = "input"
	RoleOutput DirectoryRole = "output"
)

// InvalidDirectoryError means a request directory is missing or is not a
// directory. It aborts the run before any file is touched.
type InvalidDirectoryError struct {
	Which DirectoryRole
	Path  string
	Err   error
}

func (e *InvalidDirectoryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s directory %q: %v", e.Which, e.Path, e.Err)
	}
	return fmt.Sprintf("invalid %s directory %q: not a directory", e.Which, e.Path)
}

func (e *InvalidDirectoryError) Unwrap() error { return e.Err }

// UnsupportedFormatError is raised by the codec for extensions it cannot encode.
type UnsupportedFormatError = codec.UnsupportedFormatError

// DecodeError wraps a failure to read or parse a source image. Name is the
// source file name; it is kept out of the message because the report line
// already carries it.
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError wraps a failure to encode or write an output image. Name is the
// output file name.
type EncodeError struct {
	Name string
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("cannot write image: %v", e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }
