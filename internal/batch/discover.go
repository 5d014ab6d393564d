package batch

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// VideoExts are the recognised input extensions, matched case-insensitively.
var VideoExts = []string{".mp4", ".mov", ".avi", ".mkv"}

// IsVideo reports whether name carries one of VideoExts.
func IsVideo(name string) bool {
	return slices.Contains(VideoExts, strings.ToLower(filepath.Ext(name)))
}

// MatchKeywords applies include/exclude keyword filters to a file name.
// Ignore keywords win over include keywords.
func MatchKeywords(name string, keywords, ignore []string) bool {
	lowerName := strings.ToLower(filepath.Base(name))

	for _, k := range ignore {
		if k != "" && strings.Contains(lowerName, strings.ToLower(k)) {
			log.Printf("無視キーワードに一致したためスキップ: %s", name)
			return false
		}
	}

	if len(keywords) == 0 {
		return true
	}
	for _, k := range keywords {
		if strings.Contains(lowerName, strings.ToLower(k)) {
			return true
		}
	}
	log.Printf("キーワードに一致しないためスキップ: %s", name)
	return false
}

func globPattern(recursive bool) string {
	if recursive {
		return "**/*"
	}
	return "*"
}

// Discover lists video files in dir, sorted and de-duplicated. Hidden files
// are ignored.
func Discover(dir string, recursive bool, keywords, ignore []string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("input dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input dir: %s is not a directory", dir)
	}

	matches, err := doublestar.Glob(os.DirFS(dir), globPattern(recursive))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", dir, err)
	}

	seen := make(map[string]bool)
	var files []string
	for _, m := range matches {
		if strings.HasPrefix(filepath.Base(m), ".") {
			continue
		}
		if !IsVideo(m) || underOutputDir(m) {
			continue
		}
		full := filepath.Join(dir, filepath.FromSlash(m))
		if seen[full] {
			continue
		}
		fi, err := os.Stat(full)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		if !MatchKeywords(full, keywords, ignore) {
			continue
		}
		seen[full] = true
		files = append(files, full)
	}

	sort.Strings(files)
	return files, nil
}

// underOutputDir reports whether a slash-separated relative path lies inside
// a previous run's output directory.
func underOutputDir(rel string) bool {
	parts := strings.Split(rel, "/")
	for _, p := range parts[:len(parts)-1] {
		if outputDirRe.MatchString(p) {
			return true
		}
	}
	return false
}

// filterExplicit applies the same rules to an explicit file list.
func filterExplicit(paths []string, keywords, ignore []string) []string {
	seen := make(map[string]bool)
	var files []string
	for _, p := range paths {
		if seen[p] || !IsVideo(p) || !MatchKeywords(p, keywords, ignore) {
			continue
		}
		seen[p] = true
		files = append(files, p)
	}
	sort.Strings(files)
	return files
}
