package batsgen

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
)

func TestCacheRoundtrip(t *testing.T) {
	dir := t.TempDir()
	cacheFile := filepath.Join(dir, "cache.gob")

	options := map[string]string{"interpreter": "/opt/bats/bin/bats"}
	targets := TargetList{
		"smoke": {
			Name:        "smoke",
			Interpreter: "bats",
			Srcs:        []string{"t/smoke.bats"},
			Args:        []string{"--tap"},
			Env:         map[string]string{"CI": "1"},
			Extra:       map[string]string{"visibility": "public"},
		},
	}

	build := &BuildFile{
		Targets:       targets,
		HelperSources: map[string]string{"assert": "vendor/bats-assert"},
	}

	err := WriteCache(cacheFile, options, build)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	gotOptions, gotBuild, err := ReadCache(cacheFile)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if gotOptions["interpreter"] != options["interpreter"] {
		t.Errorf("options did not round-trip: %v", gotOptions)
	}
	if gotBuild.HelperSources["assert"] != "vendor/bats-assert" {
		t.Errorf("helper sources did not round-trip: %v", gotBuild.HelperSources)
	}

	smoke, ok := gotBuild.Targets["smoke"]
	if !ok {
		t.Fatal("target smoke did not round-trip")
	}
	if smoke.Interpreter != "bats" || len(smoke.Srcs) != 1 {
		t.Errorf("target fields did not round-trip: %+v", smoke)
	}
	if smoke.Extra["visibility"] != "public" {
		t.Errorf("passthrough map did not round-trip: %v", smoke.Extra)
	}
}

func TestCheckCacheFreshness(t *testing.T) {
	dir := t.TempDir()
	buildFile := filepath.Join(dir, "tests.star")
	cacheFile := filepath.Join(dir, "cache.gob")

	err := os.WriteFile(buildFile, []byte("pass"), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	err = WriteCache(cacheFile, nil, &BuildFile{Targets: TargetList{}})
	if err != nil {
		t.Fatal(err)
	}

	err = CheckCacheFreshness(cacheFile, buildFile)
	if err != nil {
		t.Errorf("fresh cache reported stale: %v", err)
	}

	future := time.Now().Add(time.Hour)
	err = os.Chtimes(buildFile, future, future)
	if err != nil {
		t.Fatal(err)
	}

	err = CheckCacheFreshness(cacheFile, buildFile)
	if !eris.Is(err, ErrStaleCache) {
		t.Errorf("expected ErrStaleCache, got %v", err)
	}
}
