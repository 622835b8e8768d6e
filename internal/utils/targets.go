package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadTargetsFromFile reads scan targets from a file, one per line
func ReadTargetsFromFile(filepath string) ([]string, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filepath, err)
	}
	defer file.Close()

	targets, err := ReadTargets(file)
	if err != nil {
		return nil, fmt.Errorf("error reading file %s: %w", filepath, err)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("file %s contains no targets", filepath)
	}

	return targets, nil
}

// ReadTargets reads one target per line. Blank lines and # comments are
// skipped and repeated targets are kept once, in first-seen order.
func ReadTargets(r io.Reader) ([]string, error) {
	var targets []string
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key := strings.ToLower(line)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		targets = append(targets, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return targets, nil
}
