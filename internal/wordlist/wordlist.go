// Package wordlist loads the pool of words boards are dealt from.
package wordlist

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	_ "embed"
)

//go:embed words.txt
var defaultWords []byte

// Default returns the built-in word pool.
func Default() []string {
	words, _ := parse(bytes.NewReader(defaultWords))
	return words
}

// Load reads one word per line from path, or falls back to the built-in pool
// when path is empty. Blank lines and duplicates are dropped.
func Load(path string) ([]string, error) {
	if path == "" {
		return Default(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("word file: %w", err)
	}
	defer f.Close()

	words, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("word file %s: %w", path, err)
	}
	return words, nil
}

func parse(r io.Reader) ([]string, error) {
	var words []string
	seen := make(map[string]bool)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		word := strings.ToUpper(strings.TrimSpace(sc.Text()))
		if word == "" || seen[word] {
			continue
		}
		seen[word] = true
		words = append(words, word)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return words, nil
}
