package testutil

import (
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// RandomValues returns n values in [0, limit) from a seeded source.
func RandomValues(n int, seed int64, limit uint32) []uint32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]uint32, n)
	for i := range out {
		out[i] = uint32(rng.Int63n(int64(limit)))
	}
	return out
}

// WriteInputFile writes values as whitespace-separated integers, ten per
// line, into a file under t.TempDir and returns its path.
func WriteInputFile(t *testing.T, values []uint32) string {
	t.Helper()

	var content strings.Builder
	for i, v := range values {
		content.WriteString(strconv.FormatUint(uint64(v), 10))
		if i%10 == 9 {
			content.WriteString("\n")
		} else {
			content.WriteString(" ")
		}
	}

	path := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(path, []byte(content.String()), 0o644); err != nil {
		t.Fatalf("Failed to write input file: %v", err)
	}
	return path
}

// WriteConfig writes a TOML config under t.TempDir and returns its path.
func WriteConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "pradix.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

// TempFilePath returns a cross-platform temporary file path
// with the given pattern. Does not create the file.
func TempFilePath(t *testing.T, pattern string) string {
	t.Helper()

	tmpFile, err := os.CreateTemp(t.TempDir(), pattern)
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	path := tmpFile.Name()
	tmpFile.Close()
	os.Remove(path) // Remove immediately, just need the path

	return path
}
