package fetch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLocateOutputPicksFinishedFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, size int) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("job1.mp4.part", 4096)
	write("job1.f137.mp4.part-Frag3", 4096)
	write("job1.m4a", 10)
	write("job1.mp4", 100)
	write("job2.mp4", 500)

	res, err := LocateOutput(dir, "job1")
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if res.Filename != "job1.mp4" || res.Size != 100 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestLocateOutputMissing(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "job1.mp4.part"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LocateOutput(dir, "job1"); !errors.Is(err, ErrNoOutput) {
		t.Fatalf("expected ErrNoOutput, got %v", err)
	}
}

func TestFormatSelectorPrefersContainer(t *testing.T) {
	got := formatSelector("mp4")
	want := "bv*[ext=mp4]+ba/b[ext=mp4]/bv*+ba/b"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
