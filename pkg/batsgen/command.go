package batsgen

import (
	"strings"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/syntax"
)

const (
	// DefaultInterpreter is used when a target doesn't name its own.
	DefaultInterpreter = "bats"

	// DefaultTmpDirVar is the temp-directory variable exported by launch scripts.
	DefaultTmpDirVar = "TMPDIR"

	// scriptHeader selects the shell that runs the generated entrypoint.
	scriptHeader = "#!/usr/bin/env bash"

	// scriptErrExit stops the entrypoint at the first failing command.
	scriptErrExit = "set -e"

	// testTmpDirPlaceholder is resolved by the surrounding test runner.
	testTmpDirPlaceholder = "$TEST_TMPDIR"

	// workDirPlaceholder resolves relative to the working directory at run time.
	workDirPlaceholder = "$PWD/"
)

// RenderCommandLine renders the interpreter invocation for the given spec as
// a single line: the interpreter path, each argument space-joined and each
// test path space-joined and double-quoted. Embedded quotes in arguments or
// paths are passed through unescaped; avoiding them is the caller's job.
func RenderCommandLine(spec ScriptSpec) string {
	buffer := strings.Builder{}
	buffer.WriteString(spec.Interpreter)

	for _, arg := range spec.Args {
		buffer.WriteString(" ")
		buffer.WriteString(arg)
	}

	for _, path := range spec.TestPaths {
		buffer.WriteString(` "`)
		buffer.WriteString(path)
		buffer.WriteString(`"`)
	}

	return buffer.String()
}

// RenderLaunchScript renders the entrypoint script for a test target: the
// interpreter header, an errexit directive, the TMPDIR and PATH exports and
// finally the given command line. Each dependency file contributes its
// directory to PATH, prefixed with $PWD and in declaration order; the prior
// PATH value comes last. The render is pure and never touches the file system.
func RenderLaunchScript(env LaunchEnvironment, commandLine string) string {
	tmpVar := env.TmpDirVar
	if tmpVar == "" {
		tmpVar = DefaultTmpDirVar
	}

	buffer := strings.Builder{}
	buffer.WriteString(scriptHeader)
	buffer.WriteString("\n")
	buffer.WriteString(scriptErrExit)
	buffer.WriteString("\n")

	buffer.WriteString("export ")
	buffer.WriteString(tmpVar)
	buffer.WriteString(`="`)
	buffer.WriteString(testTmpDirPlaceholder)
	buffer.WriteString("\"\n")

	buffer.WriteString(`export PATH="`)
	for _, dep := range env.DependencyFiles {
		buffer.WriteString(workDirPlaceholder)
		buffer.WriteString(BaseDir(dep))
		buffer.WriteString(env.PathSeparator)
	}
	buffer.WriteString("$PATH\"\n")

	buffer.WriteString(commandLine)
	buffer.WriteString("\n")

	return buffer.String()
}

// ValidateScript checks that a rendered script parses as shell. Rendering is
// permissive string formatting, so this catches paths that break the quoting.
func ValidateScript(name, content string) error {
	parser := syntax.NewParser()
	_, err := parser.Parse(strings.NewReader(content), name)
	if err != nil {
		return eris.Wrapf(err, "the rendered script for %s is not valid shell", name)
	}

	return nil
}
