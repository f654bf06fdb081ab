package tokenizer

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSplit(t *testing.T) {
	got := Split("Hello, World! 42-times")
	want := []string{"hello", "world", "42", "times"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Split() = %v, want %v", got, want)
	}
}

func TestAdmissible(t *testing.T) {
	tok := New(NewDictionary([]string{"search", "engine", "the"}))
	tests := []struct {
		word string
		want bool
	}{
		{"search", true},
		{"the", false},
		{"unknownword", false},
		{"1234", true},
		{"12345", false},
		{"abc1", false},
	}
	for _, tt := range tests {
		if got := tok.Admissible(tt.word); got != tt.want {
			t.Errorf("Admissible(%q) = %v, want %v", tt.word, got, tt.want)
		}
	}
}

func TestTermsStemsAndKeepsDuplicates(t *testing.T) {
	tok := New(nil)
	got := tok.Terms("Running runs and the runner RUNNING")
	want := []string{"run", "run", "runner", "run"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Terms() = %v, want %v", got, want)
	}
}

func TestPermissiveDictionary(t *testing.T) {
	d := Permissive()
	for _, w := range []string{"go", "gopher"} {
		if !d.Contains(w) {
			t.Errorf("Contains(%q) = false", w)
		}
	}
	for _, w := range []string{"x", "abc1", "42"} {
		if d.Contains(w) {
			t.Errorf("Contains(%q) = true", w)
		}
	}
}

func TestQuerySortsAndDeduplicates(t *testing.T) {
	tok := New(NewDictionary([]string{"zebra", "apple", "running"}))
	got := tok.Query("zebra the Running apple zebras x9")
	want := []string{"appl", "run", "x9", "zebra"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Query() = %v, want %v", got, want)
	}
}

func TestQueryFallbackDropsLongUnknownTokens(t *testing.T) {
	tok := New(NewDictionary(nil))
	got := tok.Query("supercalifragilistic cs121")
	want := []string{"cs121"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Query() = %v, want %v", got, want)
	}
}

func TestLoadDictionary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	content := "# comment\nApple\n\nbanana\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := LoadDictionary(path)
	if err != nil {
		t.Fatalf("LoadDictionary: %v", err)
	}
	if d.Len() != 2 || !d.Contains("apple") || !d.Contains("banana") {
		t.Fatalf("unexpected dictionary contents: len=%d", d.Len())
	}
	if d.Contains("cherry") {
		t.Error("Contains(cherry) = true")
	}
}

func TestLoadDictionaryEmptyPathIsPermissive(t *testing.T) {
	d, err := LoadDictionary("")
	if err != nil {
		t.Fatal(err)
	}
	if !d.Contains("anything") {
		t.Error("empty path should yield a permissive dictionary")
	}
}
