/*
PURPOSE:
  Allocates numbered experiment folders: scans <base>/<type>-<N> entries,
  takes max(N)+1, and creates the new folder.

REQUIREMENTS:
  User-specified:
  - Sequence numbers are per model type, start at 0, and never repeat.
  - Folders of other model types must not influence the result.
  - Gaps left by externally deleted folders are not refilled (the scan
    only sees what exists, so the max wins).

  Implementation-discovered:
  - The historical split-on-hyphen parsing crashed on any entry whose
    second field wasn't an integer, and misnumbered hyphenated types.
    Replaced with an anchored pattern match; entries that don't conform
    are skipped, so "lstm-big-0" counts for type "lstm-big" and never
    for type "lstm".
  - Two concurrent runs of the same type can compute the same number;
    os.Mkdir (not MkdirAll) turns that race into a loud failure instead
    of two runs sharing a folder.

ARCHITECTURE INTEGRATION:
  - Called by: internal/experiment (dispatcher)
  - Pure filesystem; no other process state is touched.

ERROR HANDLING:
  - ErrFolderExists when the computed folder already exists (allocation race).

IMPLEMENTATION RULES:
  - Anchored regexp ^<type>-(\d+)$ with the type quoted.
  - In-process mutex; cross-process races still surface via os.Mkdir.

USAGE:
  path, seq, err := experiment.Allocate("./experiments", "features")

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/experiment/dispatcher.go

MAINTENANCE:
  - None expected; the contract is frozen by existing experiment trees.
*/

package experiment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
)

// ErrFolderExists reports a lost allocation race: the computed folder
// appeared between the scan and the create.
var ErrFolderExists = errors.New("experiment folder already exists")

// allocMu serializes allocations within this process. Concurrent runs from
// separate processes are still caught by the os.Mkdir collision below.
var allocMu sync.Mutex

// Allocate creates the next experiment folder for modelType under baseDir
// and returns its path and sequence number. baseDir is created if absent.
func Allocate(baseDir, modelType string) (string, int, error) {
	if modelType == "" {
		return "", 0, errors.New("model type must not be empty")
	}

	allocMu.Lock()
	defer allocMu.Unlock()

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create experiments directory %s: %w", baseDir, err)
	}

	seq, err := nextSequence(baseDir, modelType)
	if err != nil {
		return "", 0, err
	}

	path := filepath.Join(baseDir, fmt.Sprintf("%s-%d", modelType, seq))
	if err := os.Mkdir(path, 0755); err != nil {
		if os.IsExist(err) {
			return "", 0, fmt.Errorf("%w: %s", ErrFolderExists, path)
		}
		return "", 0, fmt.Errorf("failed to create experiment folder %s: %w", path, err)
	}

	return path, seq, nil
}

// nextSequence scans baseDir and returns max(existing)+1 for modelType,
// or 0 when no folder of that type exists yet. Only names matching the
// anchored <modelType>-<number> pattern count; everything else is someone
// else's file.
func nextSequence(baseDir, modelType string) (int, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return 0, fmt.Errorf("failed to list experiments directory %s: %w", baseDir, err)
	}

	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(modelType) + `-(\d+)$`)

	max := -1
	for _, entry := range entries {
		// An experiment run is a directory; a stray file wearing a run's
		// name must not advance the sequence.
		if !entry.IsDir() {
			continue
		}

		m := pattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}

		n, err := strconv.Atoi(m[1])
		if err != nil {
			// \d+ only admits digits; a failure here means the number
			// overflows int, which no real experiment tree reaches.
			continue
		}
		if n > max {
			max = n
		}
	}

	return max + 1, nil
}
