package worktree

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"arbor/log"
)

// excludedSegments are directory names whose contents are never preserved:
// dependency caches and build output match ignore patterns but are huge and
// reproducible.
var excludedSegments = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	"dist":         {},
	"build":        {},
	"target":       {},
	"vendor":       {},
	".next":        {},
	"__pycache__":  {},
}

// PreserveFiles copies gitignored files matching patterns from srcRepo into
// dstDir. Existing destination files are never overwritten; they are reported
// as skipped. Per-file failures are logged and do not abort the batch.
func (m *Manager) PreserveFiles(ctx context.Context, srcRepo, dstDir string, patterns []string) (PreserveResult, error) {
	result := PreserveResult{Copied: []string{}, Skipped: []string{}}
	if len(patterns) == 0 {
		return result, nil
	}

	output, err := m.gw.Run(ctx, srcRepo, "ls-files", "--others", "--ignored", "--exclude-standard")
	if err != nil {
		return result, fmt.Errorf("failed to list ignored files: %w", err)
	}

	for _, relPath := range strings.Split(output, "\n") {
		relPath = strings.TrimSpace(relPath)
		if relPath == "" || underExcludedSegment(relPath) {
			continue
		}
		if !matchesAny(relPath, patterns) {
			continue
		}

		dstPath := filepath.Join(dstDir, relPath)
		if _, err := os.Stat(dstPath); err == nil {
			result.Skipped = append(result.Skipped, relPath)
			continue
		}

		if err := copyFile(filepath.Join(srcRepo, relPath), dstPath); err != nil {
			log.WarningLog.Printf("failed to preserve %s: %v", relPath, err)
			continue
		}
		result.Copied = append(result.Copied, relPath)
	}

	return result, nil
}

// underExcludedSegment reports whether any path component is an excluded
// directory.
func underExcludedSegment(relPath string) bool {
	parts := strings.Split(relPath, "/")
	for _, part := range parts[:len(parts)-1] {
		if _, ok := excludedSegments[part]; ok {
			return true
		}
	}
	return false
}

// matchesAny matches relPath against the preserve patterns: by basename, by
// full relative path, and by the remainder of a **/ recursive pattern at any
// depth.
func matchesAny(relPath string, patterns []string) bool {
	base := path.Base(relPath)
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
			if matched, _ := path.Match(rest, base); matched {
				return true
			}
			for _, suffix := range pathSuffixes(relPath) {
				if matched, _ := path.Match(rest, suffix); matched {
					return true
				}
			}
			continue
		}
		if !strings.Contains(pattern, "/") {
			if matched, _ := path.Match(pattern, base); matched {
				return true
			}
			continue
		}
		if matched, _ := path.Match(pattern, relPath); matched {
			return true
		}
	}
	return false
}

// pathSuffixes returns every trailing sub-path of relPath:
// "a/b/c" -> ["a/b/c", "b/c", "c"].
func pathSuffixes(relPath string) []string {
	parts := strings.Split(relPath, "/")
	out := make([]string, 0, len(parts))
	for i := range parts {
		out = append(out, strings.Join(parts[i:], "/"))
	}
	return out
}

// copyFile copies a file preserving its mode. Parent directories are created
// as needed.
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}
	if srcInfo.IsDir() {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, srcInfo.Mode())
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}
