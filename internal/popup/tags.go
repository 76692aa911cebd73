package popup

import (
	"slices"
	"strings"

	"github.com/samber/lo"
)

// DisplayTag is one rendered tag chip.
type DisplayTag struct {
	Name     string `json:"name"`
	Selected bool   `json:"selected"`
}

// Tags is the tag selection of one capture session: tags the user picked and
// tags the backend suggested.
type Tags struct {
	current   []string
	suggested []string
}

// Add appends a typed tag. Blank input and tags already selected are ignored.
func (t *Tags) Add(input string) bool {
	tag := strings.TrimSpace(input)
	if tag == "" || slices.Contains(t.current, tag) {
		return false
	}
	t.current = append(t.current, tag)
	return true
}

// Toggle selects tag if unselected and unselects it otherwise.
func (t *Tags) Toggle(tag string) {
	if i := slices.Index(t.current, tag); i >= 0 {
		t.current = slices.Delete(t.current, i, i+1)
		return
	}
	t.current = append(t.current, tag)
}

// SetSuggested replaces the suggestions.
func (t *Tags) SetSuggested(tags []string) {
	t.suggested = slices.Clone(tags)
}

// Current returns the selected tags in selection order.
func (t *Tags) Current() []string {
	if t.current == nil {
		return []string{}
	}
	return slices.Clone(t.current)
}

// Suggested returns the backend suggestions.
func (t *Tags) Suggested() []string {
	return slices.Clone(t.suggested)
}

// Display lists selected tags followed by suggestions, each tag once, in
// first-seen order.
func (t *Tags) Display() []DisplayTag {
	all := lo.Uniq(append(slices.Clone(t.current), t.suggested...))
	return lo.Map(all, func(name string, _ int) DisplayTag {
		return DisplayTag{Name: name, Selected: slices.Contains(t.current, name)}
	})
}
