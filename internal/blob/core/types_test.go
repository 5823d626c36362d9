package core

import (
	"errors"
	"testing"
)

func TestCleanKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
		err  error
	}{
		{"photos/a.jpg", "photos/a.jpg", nil},
		{" snapshots//x.json ", "snapshots/x.json", nil},
		{"./photos/./b.png", "photos/b.png", nil},
		{"photos/..jpg", "photos/..jpg", nil},
		{"", "", ErrInvalidKey},
		{".", "", ErrInvalidKey},
		{"/etc/passwd", "", ErrInvalidKey},
		{"a/../../b", "", ErrInvalidKey},
		{"..", "", ErrInvalidKey},
	}
	for _, c := range cases {
		got, err := CleanKey(c.in)
		if c.err != nil {
			if !errors.Is(err, c.err) {
				t.Fatalf("CleanKey(%q): expected %v, got %q %v", c.in, c.err, got, err)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Fatalf("CleanKey(%q) = %q, %v; want %q", c.in, got, err, c.want)
		}
	}
}

func TestNormalizeMethodAndMetadata(t *testing.T) {
	if m, err := NormalizeMethod(SignedURLOptions{}); err != nil || m != "GET" {
		t.Fatalf("default method: %q %v", m, err)
	}
	if _, err := NormalizeMethod(SignedURLOptions{Method: "delete"}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected unsupported, got %v", err)
	}
	if CloneMetadata(map[string]string{}) != nil {
		t.Fatalf("empty metadata should clone to nil")
	}
	in := map[string]string{"k": "v"}
	out := CloneMetadata(in)
	out["k"] = "changed"
	if in["k"] != "v" {
		t.Fatalf("clone aliases input")
	}
}
