package l1tensor

import (
	"fmt"
	"strings"
	"sync"
)

// MinLabelTableSize is the floor the table is padded to after every
// decode pass. Segmentation models routinely emit indices beyond the
// bundled label list, so the table is kept large enough that index
// lookups stay in range.
const MinLabelTableSize = 1000

// LabelTable maps class indices to display names. It grows for the
// lifetime of a session and never shrinks. All methods are safe for
// concurrent use; growth happens on the analysis goroutine only.
type LabelTable struct {
	mu    sync.RWMutex
	names []string
}

// NewLabelTable builds a table from the best-effort initial label list
// supplied by the label-metadata collaborator. Names are trimmed of
// quoting and whitespace artifacts left by metadata parsers. A nil or
// short list is fine; the table pads itself on first use.
func NewLabelTable(initial []string) *LabelTable {
	t := &LabelTable{names: make([]string, 0, len(initial))}
	for i, name := range initial {
		cleaned := CleanLabel(name)
		if cleaned == "" {
			cleaned = syntheticName(i)
		}
		t.names = append(t.names, cleaned)
	}
	return t
}

// CleanLabel strips the quote and whitespace artifacts that label
// metadata parsers tend to leave around names.
func CleanLabel(name string) string {
	return strings.Trim(name, "\"' \t\r\n")
}

func syntheticName(idx int) string { return fmt.Sprintf("class_%d", idx) }

// Len returns the current table size.
func (t *LabelTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.names)
}

// Name returns the display name for a class index. Indices beyond the
// table fall back to the synthetic name without growing the table.
func (t *LabelTable) Name(idx int) string {
	if idx < 0 {
		return syntheticName(idx)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if idx < len(t.names) {
		return t.names[idx]
	}
	return syntheticName(idx)
}

// Grow pads the table with synthetic names up to at least size entries.
// It never truncates.
func (t *LabelTable) Grow(size int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for len(t.names) < size {
		t.names = append(t.names, syntheticName(len(t.names)))
	}
}

// EnsureCovers grows the table per the session policy: after a decode
// pass that observed maxIndex, the table holds at least
// max(MinLabelTableSize, maxIndex+1) entries.
func (t *LabelTable) EnsureCovers(maxIndex int) {
	want := MinLabelTableSize
	if maxIndex+1 > want {
		want = maxIndex + 1
	}
	t.Grow(want)
}

// Snapshot returns a copy of the current names, for observers that need
// a stable view (monitor endpoints, persistence).
func (t *LabelTable) Snapshot() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}
