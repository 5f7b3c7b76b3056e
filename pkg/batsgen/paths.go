package batsgen

import (
	"strings"

	"github.com/rotisserie/eris"
)

// BaseDir returns the directory portion of path: everything before the last
// slash, with trailing slashes stripped. A path without a slash yields "".
func BaseDir(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ""
	}

	return strings.TrimRight(path[:idx], "/")
}

// ShortestBaseDir returns the shortest directory path among the given files.
// Files are scanned in order and the first minimum wins on equal length.
//
// This is a heuristic for locating the root of a vendored helper-script tree
// when no manifest marks it: it assumes the root directory holds at least one
// file at the shallowest depth. It is NOT a common-ancestor computation and
// deliberately stays that way.
func ShortestBaseDir(files []FileRef) (string, error) {
	if len(files) == 0 {
		return "", eris.Wrap(ErrNoFiles, "cannot determine a base directory")
	}

	best := files[0].Dir
	for _, file := range files[1:] {
		if len(file.Dir) < len(best) {
			best = file.Dir
		}
	}

	return best, nil
}
