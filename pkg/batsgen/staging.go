package batsgen

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// RequiredHelperLibs are the helper libraries a bats-assert setup needs.
// The order here determines the order of the planned copies.
var RequiredHelperLibs = []string{"assert", "support"}

// helperDirPrefix is the fixed naming scheme for staged helper directories.
const helperDirPrefix = "bats-"

// PlanStaging computes the copy actions that stage the helper libraries
// under spec.DestRoot. Every name in RequiredHelperLibs must have a source
// directory; a missing one yields a MissingSourceError.
func PlanStaging(spec HelperStagingSpec) ([]CopyAction, error) {
	actions := make([]CopyAction, 0, len(RequiredHelperLibs))
	for _, name := range RequiredHelperLibs {
		src, ok := spec.Sources[name]
		if !ok {
			return nil, MissingSourceError{Name: name}
		}

		actions = append(actions, CopyAction{
			From: src,
			To:   spec.DestRoot + "/" + helperDirPrefix + name,
		})
	}

	return actions, nil
}

// LocateHelperRoot finds the root directory of a vendored helper library
// given the files it consists of, using the shortest-directory heuristic.
func LocateHelperRoot(paths []string) (string, error) {
	return ShortestBaseDir(NewFileRefs(paths))
}

// ExecuteStaging performs the planned copies on the local file system.
func ExecuteStaging(ctx context.Context, actions []CopyAction) error {
	for _, action := range actions {
		log(ctx).Debug().
			Str("from", action.From).
			Str("to", action.To).
			Msg("staging helper library")

		err := copyTree(action.From, action.To)
		if err != nil {
			return eris.Wrapf(err, "failed to stage %s", action.From)
		}
	}

	return nil
}

func copyTree(from, to string) error {
	return filepath.Walk(from, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(from, path)
		if err != nil {
			return err
		}

		dest := filepath.Join(to, rel)
		if info.IsDir() {
			return os.MkdirAll(dest, 0o755)
		}

		if !info.Mode().IsRegular() {
			// sockets, device nodes and symlink targets outside the tree
			// have no business in a staged helper directory
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		return os.WriteFile(dest, content, info.Mode().Perm())
	})
}
