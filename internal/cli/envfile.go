package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var dotenvKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var dotenvFiles = []string{".env", ".env.local"}

type envPair struct {
	key   string
	value string
}

// loadDotEnvFiles applies .env then .env.local from cwd. Variables already
// present in environ always win; a later file overrides an earlier one.
func loadDotEnvFiles(cwd string, environ []string, setenv func(string, string) error) error {
	if strings.TrimSpace(cwd) == "" {
		return nil
	}
	if setenv == nil {
		return fmt.Errorf("setenv is required")
	}

	protected := map[string]struct{}{}
	for _, pair := range environ {
		if key, _, ok := strings.Cut(pair, "="); ok {
			protected[key] = struct{}{}
		}
	}

	for _, name := range dotenvFiles {
		path := filepath.Join(cwd, name)
		pairs, err := readDotEnvFile(path)
		if err != nil {
			return err
		}
		for _, pair := range pairs {
			if _, exists := protected[pair.key]; exists {
				continue
			}
			if err := setenv(pair.key, pair.value); err != nil {
				return fmt.Errorf("set %s from %s: %w", pair.key, path, err)
			}
		}
	}
	return nil
}

func readDotEnvFile(path string) ([]envPair, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer file.Close()

	var pairs []envPair
	scanner := bufio.NewScanner(file)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		key, value, ok, parseErr := parseDotEnvLine(scanner.Text())
		if parseErr != nil {
			return nil, fmt.Errorf("parse %s:%d: %w", path, lineNo, parseErr)
		}
		if ok {
			pairs = append(pairs, envPair{key: key, value: value})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	return pairs, nil
}

func parseDotEnvLine(raw string) (string, string, bool, error) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false, nil
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

	key, value, found := strings.Cut(line, "=")
	if !found {
		return "", "", false, fmt.Errorf("expected KEY=VALUE format")
	}
	key = strings.TrimSpace(key)
	if !dotenvKeyPattern.MatchString(key) {
		return "", "", false, fmt.Errorf("invalid key %q", key)
	}
	value = strings.TrimSpace(value)

	switch {
	case value == "":
		return key, "", true, nil
	case len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`):
		decoded, err := strconv.Unquote(value)
		if err != nil {
			return "", "", false, fmt.Errorf("invalid quoted value for %q", key)
		}
		return key, decoded, true, nil
	case len(value) >= 2 && strings.HasPrefix(value, "'") && strings.HasSuffix(value, "'"):
		return key, value[1 : len(value)-1], true, nil
	}

	// Unquoted values may carry a trailing " # comment".
	if idx := strings.Index(value, " #"); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}
	return key, value, true, nil
}
