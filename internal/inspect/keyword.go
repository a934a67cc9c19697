package inspect

import (
	"errors"
	"strings"
	"sync"

	"github.com/mgutz/ansi"
)

// Palette is the fixed set of color classes assigned to keywords.
var Palette = []string{
	ansi.ColorCode("red"),
	ansi.ColorCode("green"),
	ansi.ColorCode("yellow"),
	ansi.ColorCode("blue"),
	ansi.ColorCode("magenta"),
	ansi.ColorCode("cyan"),
	ansi.ColorCode("white"),
}

// ColorNames mirrors Palette for listing keywords to the user.
var ColorNames = []string{"red", "green", "yellow", "blue", "magenta", "cyan", "white"}

var (
	ErrEmptyKeyword     = errors.New("inspect: empty keyword")
	ErrDuplicateKeyword = errors.New("inspect: keyword already registered")
)

// Keyword is one registered highlight keyword with its color class.
type Keyword struct {
	Text       string
	ColorIndex int
}

// Table is an insertion-ordered keyword filter table. The color class of a
// keyword is the value of a monotonic insertion counter modulo the palette
// size; removing a keyword never renumbers the remaining entries, and
// re-adding a removed keyword consumes the next counter value.
//
// The table is mutated from the foreground command loop while the framer
// task reads it, so all access goes through the mutex.
type Table struct {
	mu       sync.Mutex
	entries  []Keyword
	inserted int
}

func NewTable() *Table {
	return &Table{}
}

// Add registers a keyword and returns its assigned color index.
func (t *Table) Add(keyword string) (int, error) {
	if keyword == "" {
		return 0, ErrEmptyKeyword
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if e.Text == keyword {
			return 0, ErrDuplicateKeyword
		}
	}
	idx := t.inserted % len(Palette)
	t.inserted++
	t.entries = append(t.entries, Keyword{Text: keyword, ColorIndex: idx})
	return idx, nil
}

// Remove deletes a keyword. It reports whether the keyword was present.
func (t *Table) Remove(keyword string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.entries {
		if e.Text == keyword {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes all keywords. The insertion counter keeps counting.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
}

// List returns the registered keywords in insertion order.
func (t *Table) List() []Keyword {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Keyword, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of registered keywords.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Highlight wraps every occurrence of a registered keyword in its assigned
// color. restore is the color code the surrounding text returns to after
// each match; it is also appended by the caller-side reset, so Highlight
// never terminates the line itself. Matching is a case-sensitive substring
// scan in insertion order. Only applied to text renderings, never to hex.
func (t *Table) Highlight(text, restore string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if !strings.Contains(text, e.Text) {
			continue
		}
		color := Palette[e.ColorIndex%len(Palette)]
		text = strings.ReplaceAll(text, e.Text, color+e.Text+restore)
	}
	return text
}
