package split

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Chunk is one file written by ffmpeg's segment muxer.
type Chunk struct {
	Index int
	Path  string
}

// Collect lists the segments <base>_NNN.<ext> in dir, ordered by index.
// The segment muxer keeps a short final piece, so the count is not
// derivable from the duration and has to be read back from disk.
func Collect(dir, base, ext string) ([]Chunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read output dir: %w", err)
	}

	prefix := base + "_"
	suffix := "." + ext

	var chunks []Chunk
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		digits := strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix)
		idx, ok := parseIndex(digits)
		if !ok {
			continue
		}
		chunks = append(chunks, Chunk{Index: idx, Path: filepath.Join(dir, name)})
	}

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })

	log.Printf("🔪 分割完了: %s -> %d チャンク", base, len(chunks))
	return chunks, nil
}

// parseIndex accepts at least three ASCII digits; %03d widens past 999.
func parseIndex(s string) (int, bool) {
	if len(s) < 3 {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
