// Package emitter serializes compiled statement sequences into script
// text. It preserves order and never merges or rewrites statements.
package emitter

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/risingwavelabs/risingwave-pipelines/internal/connector"
)

// Script joins statements into a single executable script, terminating
// each statement with a semicolon.
func Script(stmts []connector.Statement) string {
	if len(stmts) == 0 {
		return ""
	}
	parts := make([]string, len(stmts))
	for i, s := range stmts {
		parts[i] = s.SQL
	}
	return strings.Join(parts, ";\n\n") + ";\n"
}

// Write writes the script to w.
func Write(w io.Writer, stmts []connector.Statement) error {
	_, err := io.WriteString(w, Script(stmts))
	return err
}

// WriteFile writes the script to path, creating parent directories as
// needed.
func WriteFile(path string, stmts []connector.Statement) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(Script(stmts)), 0o644)
}
