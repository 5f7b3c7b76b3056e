package batsgen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeBuildFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tests.star")
	err := os.WriteFile(path, []byte(content), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunScript(t *testing.T) {
	path := writeBuildFile(t, `
interp = option("interpreter", default="bats", help="bats binary to use")

helper_lib(name="assert", files=["vendor/bats-assert/load.bash", "vendor/bats-assert/src/assert.bash"])
helper_lib(name="support", dir="vendor/bats-support")

setenv("CI", "1")

bats_test(
    name="smoke",
    interpreter=interp,
    srcs=["t/smoke.bats"],
    deps=["tools/jq/jq"],
    args=["--tap"],
    env={"LANG": "C"},
    uses_bats_assert=True,
    visibility="public",
)

bats_test_suite(
    name="all",
    srcs=["t/one.bats", "t/two.bats"],
    tags=["slow"],
)
`)

	result, err := RunScript(testContext(t), path, filepath.Dir(path), nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	smoke, ok := result.Targets["smoke"]
	if !ok {
		t.Fatal("target smoke is missing")
	}
	if smoke.Interpreter != "bats" {
		t.Errorf("got interpreter %q, want %q", smoke.Interpreter, "bats")
	}
	if len(smoke.Srcs) != 1 || smoke.Srcs[0] != "t/smoke.bats" {
		t.Errorf("unexpected srcs: %v", smoke.Srcs)
	}
	if !smoke.UsesAssert {
		t.Error("uses_bats_assert was not picked up")
	}
	if smoke.Extra["visibility"] != "public" {
		t.Errorf("unmodeled keyword was not forwarded: %v", smoke.Extra)
	}
	if smoke.Env["LANG"] != "C" {
		t.Errorf("env entry missing: %v", smoke.Env)
	}
	if smoke.Env["CI"] != "1" {
		t.Errorf("setenv override was not merged: %v", smoke.Env)
	}

	suite, ok := result.Targets["all"]
	if !ok {
		t.Fatal("suite target is missing")
	}
	wantMembers := []string{"all.one", "all.two"}
	if len(suite.Members) != len(wantMembers) {
		t.Fatalf("got members %v, want %v", suite.Members, wantMembers)
	}
	for idx, member := range wantMembers {
		if suite.Members[idx] != member {
			t.Errorf("member %d: got %q, want %q", idx, suite.Members[idx], member)
		}

		target, ok := result.Targets[member]
		if !ok {
			t.Errorf("member target %s is missing", member)
			continue
		}
		if len(target.Srcs) != 1 {
			t.Errorf("member %s should have exactly one src: %v", member, target.Srcs)
		}
	}

	if result.HelperSources["assert"] != "vendor/bats-assert" {
		t.Errorf("helper root not located: %v", result.HelperSources)
	}
	if result.HelperSources["support"] != "vendor/bats-support" {
		t.Errorf("helper dir not recorded: %v", result.HelperSources)
	}

	opt, ok := result.Options["interpreter"]
	if !ok {
		t.Fatal("option interpreter is missing")
	}
	if opt.Default() != "bats" {
		t.Errorf("got default %q, want %q", opt.Default(), "bats")
	}
}

func TestRunScriptOptionOverride(t *testing.T) {
	path := writeBuildFile(t, `
interp = option("interpreter", default="bats")

bats_test(name="smoke", interpreter=interp, srcs=["t/smoke.bats"])
`)

	result, err := RunScript(testContext(t), path, filepath.Dir(path), map[string]string{"interpreter": "/opt/bats/bin/bats"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := result.Targets["smoke"].Interpreter; got != "/opt/bats/bin/bats" {
		t.Errorf("got interpreter %q, want the override", got)
	}
}

func TestRunScriptConfigurePhase(t *testing.T) {
	path := writeBuildFile(t, `
fast = option("fast", default="")

def configure():
    args = []
    if fast != "":
        args = ["--filter-tags", "!slow"]
    bats_test(name="unit", srcs=["t/unit.bats"], args=args)
`)

	result, err := RunScript(testContext(t), path, filepath.Dir(path), map[string]string{"fast": "1"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	unit, ok := result.Targets["unit"]
	if !ok {
		t.Fatal("target unit is missing")
	}
	if len(unit.Args) != 2 {
		t.Errorf("configure-phase args were not applied: %v", unit.Args)
	}
}

func TestRunScriptDuplicateName(t *testing.T) {
	path := writeBuildFile(t, `
bats_test(name="dup", srcs=["t/a.bats"])
bats_test(name="dup", srcs=["t/b.bats"])
`)

	_, err := RunScript(testContext(t), path, filepath.Dir(path), nil, true)
	if err == nil {
		t.Fatal("expected an error for a duplicate target name")
	}
}

func TestRunScriptAnonymousTarget(t *testing.T) {
	path := writeBuildFile(t, `
bats_test(srcs=["t/anon.bats"])
bats_test(name="named", srcs=["t/named.bats"])
`)

	result, err := RunScript(testContext(t), path, filepath.Dir(path), nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Targets) != 2 {
		t.Fatalf("anonymous targets must not be dropped, got %v", result.Targets)
	}

	named, ok := result.Targets["named"]
	if !ok {
		t.Fatal("target named is missing")
	}
	if named.Hidden {
		t.Error("named targets should not be hidden")
	}

	for name, target := range result.Targets {
		if name == "named" {
			continue
		}
		if !strings.HasPrefix(name, "auto#") {
			t.Errorf("anonymous target got the name %q, want an auto# name", name)
		}
		if !target.Hidden {
			t.Errorf("anonymous target %s should be hidden", name)
		}
	}
}

func TestRunScriptAnonymousSuite(t *testing.T) {
	path := writeBuildFile(t, `
bats_test_suite(srcs=["t/one.bats", "t/two.bats"])
`)

	result, err := RunScript(testContext(t), path, filepath.Dir(path), nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Targets) != 3 {
		t.Fatalf("expected the suite and both members, got %v", result.Targets)
	}

	var suite *Target
	for _, target := range result.Targets {
		if len(target.Members) > 0 {
			suite = target
		}
	}
	if suite == nil {
		t.Fatal("suite target is missing")
	}
	if !suite.Hidden {
		t.Error("an anonymous suite should be hidden")
	}

	for _, member := range suite.Members {
		target, ok := result.Targets[member]
		if !ok {
			t.Errorf("member %s is missing", member)
			continue
		}
		if !target.Hidden {
			t.Errorf("member %s should inherit the suite's hidden flag", member)
		}
	}

	// hidden suites still resolve their members when run
	err = RunTarget(testContext(t), filepath.Dir(path), suite.Name, result.Targets, true)
	if err != nil {
		t.Errorf("dry run of the anonymous suite failed: %v", err)
	}
}
