package batsgen

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrNoFiles is returned where a non-empty file list is contractually required.
var ErrNoFiles = eris.New("no files given")

// ErrStaleCache is returned when the build file is newer than the cached
// target list. Callers have to re-evaluate the build file.
var ErrStaleCache = eris.New("cached targets are older than the build file")

// MissingSourceError reports a required helper library without a source directory.
type MissingSourceError struct {
	Name string
}

var _ error = (*MissingSourceError)(nil)

func (e MissingSourceError) Error() string {
	return fmt.Sprintf("no source directory for the required helper library %q", e.Name)
}
