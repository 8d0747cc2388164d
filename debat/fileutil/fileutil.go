// Package fileutil holds small file and prompt-text helpers shared by the
// library and the CLI.
package fileutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Truncate trims s and cuts it to at most max bytes, marking the cut with an
// ellipsis. max <= 0 disables truncation.
func Truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

// SanitizeNewlines flattens CR/LF variants into literal "\n" escapes so a
// multi-line value fits on one prompt row.
func SanitizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

var promptReplacer = strings.NewReplacer(
	"‘", "'", // left single quote
	"’", "'", // right single quote
	"“", `"`, // left double quote
	"”", `"`, // right double quote
	"–", "-", // en dash
	"—", "-", // em dash
	"…", "...", // ellipsis
	" ", " ", // no-break space
)

// NormalizePromptText replaces typographic punctuation that some completion
// endpoints mangle with plain ASCII equivalents.
func NormalizePromptText(s string) string {
	if s == "" {
		return ""
	}
	return promptReplacer.Replace(s)
}

// WriteFileAtomic writes data to path via a temp file in the same directory
// and an atomic rename. Parent directories are created as needed.
func WriteFileAtomic(path string, data []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp_debatsum_*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write([]byte("\n")); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
