package main

import (
	"encoding/json"
	"fmt"
	"io"
)

// outputJSON writes a value as formatted JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// output writes v as JSON, or calls human when --human is set.
func output(w io.Writer, v any, human func(io.Writer)) error {
	if humanOutput {
		human(w)
		return nil
	}
	return outputJSON(w, v)
}

// truncate shortens s to n runes for human output.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
