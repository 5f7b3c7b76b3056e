package batsgen

import (
	"fmt"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
	starsyntax "go.starlark.net/syntax"
)

// FileRef is a file path paired with its derived directory path.
type FileRef struct {
	Path string
	Dir  string
}

// NewFileRef derives the directory path for the given file path.
func NewFileRef(path string) FileRef {
	return FileRef{Path: path, Dir: BaseDir(path)}
}

// NewFileRefs converts a list of file paths into FileRefs, preserving order.
func NewFileRefs(paths []string) []FileRef {
	refs := make([]FileRef, len(paths))
	for idx, path := range paths {
		refs[idx] = NewFileRef(path)
	}
	return refs
}

// ScriptSpec describes a single interpreter invocation.
type ScriptSpec struct {
	Interpreter string
	Args        []string
	TestPaths   []string
}

// LaunchEnvironment describes the exports written before the test command.
// DependencyFiles are the runtime files whose directories end up on PATH;
// the first entry has the highest lookup priority.
type LaunchEnvironment struct {
	DependencyFiles []string
	PathSeparator   string
	TmpDirVar       string
}

// HelperStagingSpec describes which helper-library trees to copy where.
type HelperStagingSpec struct {
	Sources  map[string]string
	DestRoot string
}

// CopyAction describes one recursive directory copy. Computing the action is
// pure; executing it is left to the caller.
type CopyAction struct {
	From string
	To   string
}

// Target contains the processed values passed to bats_test() by the build script
type Target struct {
	Name        string
	Desc        string
	Base        string
	Interpreter string
	Srcs        []string
	Deps        []string
	Args        []string
	Tags        []string
	Env         map[string]string
	Extra       map[string]string
	Members     []string
	UsesAssert  bool
	Hidden      bool
}

// TargetList maps names to each declared target
type TargetList map[string]*Target

// BuildFile holds everything a tests.star evaluation produced.
type BuildFile struct {
	Targets       TargetList
	Options       map[string]ScriptOption
	HelperSources map[string]string
}

type ScriptOption struct {
	DefaultValue starlark.String
	Help         string
}

func (o ScriptOption) Default() string {
	return o.DefaultValue.GoString()
}

// Implement starlark.Value for *Target

// String returns a string representation of the target
func (t *Target) String() string {
	return fmt.Sprintf("<Target %s: %d srcs>", t.Name, len(t.Srcs))
}

// Type always returns "bats_test" to indicate this type
func (t *Target) Type() string {
	return "bats_test"
}

// Freeze doesn't do anything since targets are immutable anyway
func (t *Target) Freeze() {}

// Truth always returns true since a target can't be nil or None
func (t *Target) Truth() starlark.Bool {
	return starlark.True
}

// Hash always returns an error since targets are not hashable
func (t *Target) Hash() (uint32, error) {
	return 0, eris.New("bats_test is not a hashable type")
}

type StarlarkPath string

func (p StarlarkPath) String() string {
	return starlark.String(p).String()
}

func (p StarlarkPath) Type() string {
	return "path"
}

func (p StarlarkPath) Freeze() {}

func (p StarlarkPath) Truth() starlark.Bool {
	return p != ""
}

func (p StarlarkPath) Hash() (uint32, error) {
	return starlark.String(p).Hash()
}

func (p StarlarkPath) CompareSameType(op starsyntax.Token, y_ starlark.Value, depth int) (bool, error) {
	y := y_.(StarlarkPath)

	switch op {
	case starsyntax.EQL:
		return p == y, nil
	case starsyntax.NEQ:
		return p != y, nil
	case starsyntax.LT:
		return p < y, nil
	case starsyntax.LE:
		return p <= y, nil
	case starsyntax.GT:
		return p > y, nil
	case starsyntax.GE:
		return p >= y, nil
	}

	return false, eris.Errorf("unknown operator %v", op)
}

func (p StarlarkPath) Index(i int) starlark.Value {
	return starlark.String(p[i])
}

func (p StarlarkPath) Len() int {
	return len(p)
}

func (p StarlarkPath) Slice(start, end, step int) starlark.Value {
	return starlark.String(p).Slice(start, end, step)
}
