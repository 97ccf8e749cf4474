// Package differ computes a line-based diff between two snapshot blobs
// (C8), using a Myers diff over whole lines.
package differ

import (
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Tag is one of equal, insert, delete — the per-line classification
// within a hunk.
type Tag string

const (
	TagEqual  Tag = "equal"
	TagInsert Tag = "insert"
	TagDelete Tag = "delete"
)

type Line struct {
	Tag     Tag    `json:"tag"`
	Content string `json:"content"`
}

type Hunk struct {
	OldStart int    `json:"old_start"`
	NewStart int    `json:"new_start"`
	Lines    []Line `json:"lines"`
}

// Result is the full comparison: one hunk spanning the entire compared
// region (FTM diffs whole small text files, not multi-window patches),
// plus the line counts of each side.
type Result struct {
	Hunks    []Hunk `json:"hunks"`
	OldTotal int    `json:"old_total"`
	NewTotal int    `json:"new_total"`
}

// splitLines splits text on "\n" and strips one trailing empty element
// produced by a final newline, per spec.md §4.8.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

// sanitize replaces invalid UTF-8 byte sequences with the Unicode
// replacement character for display purposes only; the stored blob
// itself is never touched by this package.
func sanitize(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "�")
}

// Compare diffs from (possibly empty, for an absent prior version)
// against to, both raw blob bytes.
func Compare(from, to []byte) Result {
	fromText := sanitize(from)
	toText := sanitize(to)

	oldLines := splitLines(fromText)
	newLines := splitLines(toText)

	dmp := diffmatchpatch.New()
	chars1, chars2, lineArray := dmp.DiffLinesToChars(fromText, toText)
	diffs := dmp.DiffMain(chars1, chars2, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var lines []Line
	for _, d := range diffs {
		var tag Tag
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			tag = TagEqual
		case diffmatchpatch.DiffInsert:
			tag = TagInsert
		case diffmatchpatch.DiffDelete:
			tag = TagDelete
		default:
			continue
		}
		for _, content := range splitLines(d.Text) {
			lines = append(lines, Line{Tag: tag, Content: content})
		}
	}

	result := Result{OldTotal: len(oldLines), NewTotal: len(newLines)}
	if len(lines) > 0 {
		result.Hunks = []Hunk{{OldStart: 1, NewStart: 1, Lines: lines}}
	}
	return result
}
