package diffengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMarkerRoundTrip(t *testing.T) {
	flat := flattenElements([]element{{name: "paragraph 1", text: "hello"}})

	name, ok := parseMarker(flat[:len(elementMarkerPrefix+"paragraph 1"+elementMarkerSuffix)])
	assert.True(t, ok)
	assert.Equal(t, "paragraph 1", name)
}

func TestRegroupByElementAssignsEntriesToElement(t *testing.T) {
	oldFlat := flattenElements([]element{{name: "paragraph 1", text: "hello world"}})
	newFlat := flattenElements([]element{{name: "paragraph 1", text: "hello there"}})

	entries := diffLines(oldFlat, newFlat)
	groups := regroupByElement(entries)

	found := false

	for _, g := range groups {
		if g.Element == "paragraph 1" {
			found = true

			changed := false

			for _, c := range g.Changes {
				if c.Tag != TagUnchanged {
					changed = true
				}
			}

			assert.True(t, changed)
		}
	}

	assert.True(t, found)
}

func TestRegroupByElementSeparatesMultipleElements(t *testing.T) {
	oldFlat := flattenElements([]element{
		{name: "paragraph 1", text: "first"},
		{name: "paragraph 2", text: "second"},
	})
	newFlat := flattenElements([]element{
		{name: "paragraph 1", text: "first"},
		{name: "paragraph 2", text: "second, changed"},
	})

	entries := diffLines(oldFlat, newFlat)
	groups := regroupByElement(entries)

	names := make(map[string]bool)
	for _, g := range groups {
		names[g.Element] = true
	}

	assert.True(t, names["paragraph 1"])
	assert.True(t, names["paragraph 2"])
}
