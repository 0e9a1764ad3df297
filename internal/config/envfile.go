package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// ParseEnvFile reads KEY=VALUE pairs from an .env style reader.
// Blank lines and lines starting with # are skipped. Values may be
// wrapped in single or double quotes.
func ParseEnvFile(r io.Reader) (map[string]string, error) {
	values := make(map[string]string)

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("line %d: missing '=' separator", lineNum)
		}

		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("line %d: empty key", lineNum)
		}

		value = strings.TrimSpace(value)
		value = unquote(value)

		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return values, nil
}

// WriteEnvFile writes key-value pairs as an .env file with sorted keys.
// The file is created with 0600 permissions since it may hold secrets.
func WriteEnvFile(filePath string, values map[string]string) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		v := values[k]
		if needsQuoting(v) {
			v = `"` + v + `"`
		}
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(v)
		sb.WriteString("\n")
	}

	return os.WriteFile(filePath, []byte(sb.String()), 0600)
}

// unquote strips matching single or double quotes around a value.
func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// needsQuoting reports whether a value must be quoted to survive a
// parse round trip.
func needsQuoting(s string) bool {
	if s == "" {
		return false
	}
	if s != strings.TrimSpace(s) {
		return true
	}
	return strings.HasPrefix(s, "#")
}
