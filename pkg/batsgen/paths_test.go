package batsgen

import (
	"testing"

	"github.com/rotisserie/eris"
)

func TestBaseDir(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"a/b/c.txt", "a/b"},
		{"a/b.txt", "a"},
		{"c.txt", ""},
		{"a//b.txt", "a"},
		{"nested/deeper/dir/f", "nested/deeper/dir"},
		{"/abs/file", "/abs"},
		{"", ""},
	}

	for _, tc := range cases {
		got := BaseDir(tc.path)
		if got != tc.want {
			t.Errorf("BaseDir(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestShortestBaseDir(t *testing.T) {
	cases := []struct {
		name  string
		paths []string
		want  string
	}{
		{"single", []string{"a/b/c.txt"}, "a/b"},
		{"shallowest wins", []string{"x/y/f1", "x/f2", "x/y/z/f3"}, "x"},
		{"first minimum wins on ties", []string{"aa/f1", "bb/f2", "cc/f3"}, "aa"},
		{"rootless file", []string{"dir/f1", "f2"}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ShortestBaseDir(NewFileRefs(tc.paths))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("ShortestBaseDir(%v) = %q, want %q", tc.paths, got, tc.want)
			}
		})
	}
}

func TestShortestBaseDirMinimality(t *testing.T) {
	paths := []string{"a/b/c/d/e", "a/b/x", "a/b/c/y", "root/f", "a/z"}
	refs := NewFileRefs(paths)

	got, err := ShortestBaseDir(refs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, ref := range refs {
		if len(got) > len(ref.Dir) {
			t.Errorf("result %q is longer than %q", got, ref.Dir)
		}
	}
}

func TestShortestBaseDirEmpty(t *testing.T) {
	_, err := ShortestBaseDir(nil)
	if err == nil {
		t.Fatal("expected an error for an empty input")
	}
	if !eris.Is(err, ErrNoFiles) {
		t.Errorf("expected ErrNoFiles, got %v", err)
	}
}
