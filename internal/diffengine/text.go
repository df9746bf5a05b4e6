package diffengine

import (
	"fmt"
	"os"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// TextStrategy produces a line-granular inline diff using the Myers
// algorithm (via sergi/go-diff), with each entry carrying character
// offsets into the new text and an insert/delete/modify/unchanged tag.
type TextStrategy struct{}

func (TextStrategy) Generate(oldPath, newPath string, isInitial bool) (*Result, error) {
	oldText, err := readTextFile(oldPath)
	if err != nil {
		return nil, fmt.Errorf("diffengine: reading old version %s: %w", oldPath, err)
	}

	newText, err := readTextFile(newPath)
	if err != nil {
		return nil, fmt.Errorf("diffengine: reading new version %s: %w", newPath, err)
	}

	entries := diffLines(oldText, newText)

	changed := false

	for _, e := range entries {
		if e.Tag != TagUnchanged {
			changed = true
			break
		}
	}

	return &Result{
		FileType:  KindText,
		IsChanged: changed,
		IsInitial: isInitial,
		Text:      &TextResult{Entries: entries},
	}, nil
}

func readTextFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}

	if err != nil {
		return "", err
	}

	return string(data), nil
}

// diffLines runs a line-mode Myers diff and collapses the token stream
// into LineChange entries, tracking running offsets into the new text and
// merging an adjacent delete+insert pair into a single "modified" entry.
func diffLines(oldText, newText string) []LineChange {
	dmp := diffmatchpatch.New()

	a, b, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var entries []LineChange

	offset := 0

	for i := 0; i < len(diffs); i++ {
		d := diffs[i]

		switch d.Type {
		case diffmatchpatch.DiffEqual:
			entries = append(entries, LineChange{
				StartOffset: offset,
				EndOffset:   offset + len(d.Text),
				Original:    d.Text,
				Modified:    d.Text,
				Tag:         TagUnchanged,
			})
			offset += len(d.Text)

		case diffmatchpatch.DiffDelete:
			if i+1 < len(diffs) && diffs[i+1].Type == diffmatchpatch.DiffInsert {
				ins := diffs[i+1]
				entries = append(entries, LineChange{
					StartOffset: offset,
					EndOffset:   offset + len(ins.Text),
					Original:    d.Text,
					Modified:    ins.Text,
					Tag:         TagModified,
				})
				offset += len(ins.Text)
				i++

				continue
			}

			entries = append(entries, LineChange{
				StartOffset: offset,
				EndOffset:   offset,
				Original:    d.Text,
				Modified:    "",
				Tag:         TagDeleted,
			})

		case diffmatchpatch.DiffInsert:
			entries = append(entries, LineChange{
				StartOffset: offset,
				EndOffset:   offset + len(d.Text),
				Original:    "",
				Modified:    d.Text,
				Tag:         TagInserted,
			})
			offset += len(d.Text)
		}
	}

	return entries
}
