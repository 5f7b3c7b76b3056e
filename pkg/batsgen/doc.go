// Package batsgen generates runnable test targets for bats test suites.
// Targets are declared in a Starlark build file (tests.star); for each target
// the package renders a small launch script that exports TMPDIR and PATH and
// invokes the bats interpreter, using mvdan.cc/sh for the shell runtime.
package batsgen
