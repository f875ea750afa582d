// File: modconf/toml.go
package modconf

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// parseDocument parses TOML bytes into a nested map.
func parseDocument(data []byte) (map[string]any, error) {
	doc := make(map[string]any)
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse TOML document: %w", err)
	}
	return doc, nil
}

// Render serializes the spec to TOML using the effective values. Comment
// lines attach above each key and section header, followed by generated
// constraint notes. Within each section, values render before subsections:
// a bare key after a table header would otherwise belong to that table.
func (s *ConfigSpec) Render() []byte {
	var buf bytes.Buffer
	renderSection(&buf, s.root)
	return buf.Bytes()
}

// SaveTo renders the spec and writes it to path atomically, clearing the
// dirty flag on success.
func (s *ConfigSpec) SaveTo(path string) error {
	if err := atomicWriteFile(path, s.Render()); err != nil {
		return err
	}
	s.clearDirty()
	return nil
}

func renderSection(buf *bytes.Buffer, sec *SectionSpec) {
	if sec.path != "" {
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		writeCommentLines(buf, sec.comment)
		fmt.Fprintf(buf, "[%s]\n", sec.path)
	}
	for _, vs := range sec.Values() {
		renderValue(buf, vs)
	}
	for _, child := range sec.Sections() {
		renderSection(buf, child)
	}
}

func renderValue(buf *bytes.Buffer, vs *ValueSpec) {
	if buf.Len() > 0 {
		buf.WriteByte('\n')
	}
	writeCommentLines(buf, vs.comment)
	if vs.rangeNote != "" {
		fmt.Fprintf(buf, "# Range: %s\n", vs.rangeNote)
	}
	if len(vs.allowed) > 0 {
		fmt.Fprintf(buf, "# Allowed Values: %s\n", strings.Join(vs.allowed, ", "))
	}
	if vs.worldRestart {
		buf.WriteString("# Requires world restart\n")
	}
	fmt.Fprintf(buf, "%s = %s\n", lastSegment(vs.path), formatTOMLValue(vs.value()))
}

func writeCommentLines(buf *bytes.Buffer, lines []string) {
	for _, line := range lines {
		if line == "" {
			buf.WriteString("#\n")
			continue
		}
		fmt.Fprintf(buf, "# %s\n", line)
	}
}

func formatTOMLValue(val any) string {
	switch v := val.(type) {
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return formatTOMLFloat(v)
	case string:
		return escapeTOMLString(v)
	case []string:
		if len(v) == 0 {
			return "[]"
		}
		parts := make([]string, len(v))
		for i, elem := range v {
			parts[i] = escapeTOMLString(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatTOMLFloat renders a float in TOML syntax, which requires a decimal
// point or exponent to distinguish floats from integers.
func formatTOMLFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// escapeTOMLString quotes a string as a TOML basic string.
func escapeTOMLString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\b':
			b.WriteString(`\b`)
		case '\t':
			b.WriteString(`\t`)
		case '\n':
			b.WriteString(`\n`)
		case '\f':
			b.WriteString(`\f`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\u%04X`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

// atomicWriteFile performs atomic file write
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	tempPath := tempFile.Name()
	defer os.Remove(tempPath) // Clean up on any error

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}
