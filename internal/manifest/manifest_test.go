package manifest

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/errors"
)

func TestWriteRead(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "final_index")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := Manifest{BuildID: "b1", Documents: 3, Shards: []string{"a_g", "other"}, CreatedAt: now, FinalizedAt: now.Add(time.Second)}
	if err := Write(dir, want); err != nil {
		t.Fatal(err)
	}
	got, err := Read(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(*got, want) {
		t.Fatalf("Read = %+v, want %+v", *got, want)
	}
	if err := Remove(dir); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(dir); !errors.Is(err, apperrors.ErrStorage) {
		t.Fatalf("Read after Remove = %v", err)
	}
	if err := Remove(dir); err != nil {
		t.Errorf("second Remove = %v", err)
	}
}
