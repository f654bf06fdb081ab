package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/errors"
)

func TestWalkReturnsSortedFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b/2.json", "a/1.json", "c.json"} {
		if err := Write(filepath.Join(dir, name), Document{Content: name, Encoding: "utf-8"}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := Walk(dir)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a/1.json"),
		filepath.Join(dir, "b/2.json"),
		filepath.Join(dir, "c.json"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Walk() = %v, want %v", got, want)
	}
}

func TestWalkMissingDirectory(t *testing.T) {
	_, err := Walk(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, apperrors.ErrStorage) {
		t.Fatalf("Walk() error = %v, want ErrStorage", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	want := Document{URL: "http://x", Content: "<p>hi</p>", Encoding: "utf-8"}
	if err := Write(path, want); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, apperrors.ErrStorage) {
		t.Fatalf("Load() error = %v, want ErrStorage", err)
	}
}

func TestEncodingSet(t *testing.T) {
	set := NewEncodingSet([]string{"ascii", "UTF-8"})
	for _, enc := range []string{"ascii", "ASCII", "utf-8", " utf-8 "} {
		if !set.Allows(enc) {
			t.Errorf("Allows(%q) = false", enc)
		}
	}
	for _, enc := range []string{"iso-8859-1", "", "windows-1252"} {
		if set.Allows(enc) {
			t.Errorf("Allows(%q) = true", enc)
		}
	}
}
