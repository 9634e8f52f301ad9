package experiment

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func mkdirs(t *testing.T, base string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.Mkdir(filepath.Join(base, name), 0755); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
	}
}

func TestAllocate_FirstRunIsZero(t *testing.T) {
	base := t.TempDir()

	path, seq, err := Allocate(base, "features")
	if err != nil {
		t.Fatalf("Allocate returned error: %v", err)
	}
	if seq != 0 {
		t.Fatalf("sequence: got %d, want 0", seq)
	}
	if filepath.Base(path) != "features-0" {
		t.Fatalf("folder: got %s, want features-0", filepath.Base(path))
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat new folder: %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("%s is not a directory", path)
	}
}

func TestAllocate_Sequential(t *testing.T) {
	base := t.TempDir()

	for want := 0; want < 3; want++ {
		_, seq, err := Allocate(base, "features")
		if err != nil {
			t.Fatalf("Allocate #%d: %v", want, err)
		}
		if seq != want {
			t.Fatalf("sequence: got %d, want %d", seq, want)
		}
	}
}

func TestAllocate_GapIsNotRefilled(t *testing.T) {
	base := t.TempDir()
	mkdirs(t, base, "lstm-0", "lstm-2")

	path, seq, err := Allocate(base, "lstm")
	if err != nil {
		t.Fatalf("Allocate returned error: %v", err)
	}
	if seq != 3 {
		t.Fatalf("sequence: got %d, want 3 (gaps are never refilled)", seq)
	}
	if filepath.Base(path) != "lstm-3" {
		t.Fatalf("folder: got %s, want lstm-3", filepath.Base(path))
	}
}

func TestAllocate_TypesAreIsolated(t *testing.T) {
	base := t.TempDir()
	mkdirs(t, base, "features-0", "features-1", "features-7")

	_, seq, err := Allocate(base, "lstm")
	if err != nil {
		t.Fatalf("Allocate returned error: %v", err)
	}
	if seq != 0 {
		t.Fatalf("sequence: got %d, want 0 (features folders must not count)", seq)
	}
}

func TestAllocate_HyphenatedSiblingTypeDoesNotCount(t *testing.T) {
	base := t.TempDir()
	mkdirs(t, base, "lstm-big-0", "lstm-big-1", "lstm-4")

	_, seq, err := Allocate(base, "lstm")
	if err != nil {
		t.Fatalf("Allocate(lstm) returned error: %v", err)
	}
	if seq != 5 {
		t.Fatalf("lstm sequence: got %d, want 5", seq)
	}

	_, seq, err = Allocate(base, "lstm-big")
	if err != nil {
		t.Fatalf("Allocate(lstm-big) returned error: %v", err)
	}
	if seq != 2 {
		t.Fatalf("lstm-big sequence: got %d, want 2", seq)
	}
}

func TestAllocate_IgnoresNonConformingEntries(t *testing.T) {
	base := t.TempDir()
	mkdirs(t, base, "lstm-0", "lstm-old", "lstm-")
	if err := os.WriteFile(filepath.Join(base, "lstm-1.bak"), nil, 0644); err != nil {
		t.Fatalf("write stray file: %v", err)
	}

	_, seq, err := Allocate(base, "lstm")
	if err != nil {
		t.Fatalf("Allocate returned error: %v", err)
	}
	if seq != 1 {
		t.Fatalf("sequence: got %d, want 1", seq)
	}
}

func TestAllocate_PlainFileDoesNotAdvanceSequence(t *testing.T) {
	base := t.TempDir()
	mkdirs(t, base, "lstm-0")
	if err := os.WriteFile(filepath.Join(base, "lstm-5"), nil, 0644); err != nil {
		t.Fatalf("write stray file: %v", err)
	}

	path, seq, err := Allocate(base, "lstm")
	if err != nil {
		t.Fatalf("Allocate returned error: %v", err)
	}
	if seq != 1 {
		t.Fatalf("sequence: got %d, want 1 (only directories are runs)", seq)
	}
	if filepath.Base(path) != "lstm-1" {
		t.Fatalf("folder: got %s, want lstm-1", filepath.Base(path))
	}
}

func TestAllocate_CreatesBaseDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "experiments")

	path, seq, err := Allocate(base, "plm")
	if err != nil {
		t.Fatalf("Allocate returned error: %v", err)
	}
	if seq != 0 || filepath.Base(path) != "plm-0" {
		t.Fatalf("got (%s, %d), want (plm-0, 0)", filepath.Base(path), seq)
	}
}

func TestAllocate_EmptyModelType(t *testing.T) {
	if _, _, err := Allocate(t.TempDir(), ""); err == nil {
		t.Fatal("expected error for empty model type")
	}
}

func TestAllocate_CollisionFailsLoudly(t *testing.T) {
	// Simulate a lost cross-process race: the folder the scan would pick
	// appears as a plain file, so os.Mkdir must fail.
	base := t.TempDir()
	if err := os.WriteFile(filepath.Join(base, "features-0"), nil, 0644); err != nil {
		t.Fatalf("write colliding file: %v", err)
	}

	_, _, err := Allocate(base, "features")
	if !errors.Is(err, ErrFolderExists) {
		t.Fatalf("error: got %v, want ErrFolderExists", err)
	}
}

func TestAllocate_ConcurrentSameType(t *testing.T) {
	base := t.TempDir()

	const n = 16
	seqs := make([]int, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, seqs[i], errs[i] = Allocate(base, "features")
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool, n)
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("Allocate #%d: %v", i, errs[i])
		}
		if seen[seqs[i]] {
			t.Fatalf("sequence %d handed out twice", seqs[i])
		}
		seen[seqs[i]] = true
	}
}
