package popup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func names(tags []DisplayTag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.Name
	}
	return out
}

func TestTags_DisplayDeduplicatesInFirstSeenOrder(t *testing.T) {
	var tags Tags
	tags.Add("a")
	tags.Add("b")
	tags.SetSuggested([]string{"b", "c"})

	got := tags.Display()
	assert.Equal(t, []string{"a", "b", "c"}, names(got))
	assert.Equal(t, []DisplayTag{
		{Name: "a", Selected: true},
		{Name: "b", Selected: true},
		{Name: "c", Selected: false},
	}, got)
}

func TestTags_Add(t *testing.T) {
	var tags Tags
	assert.True(t, tags.Add("  go  "))
	assert.False(t, tags.Add("go"))
	assert.False(t, tags.Add("   "))
	assert.False(t, tags.Add(""))
	assert.Equal(t, []string{"go"}, tags.Current())
}

func TestTags_Toggle(t *testing.T) {
	var tags Tags
	tags.Add("a")
	tags.Add("b")

	tags.Toggle("a")
	assert.Equal(t, []string{"b"}, tags.Current())

	tags.Toggle("c")
	assert.Equal(t, []string{"b", "c"}, tags.Current())

	t.Run("double toggle restores membership", func(t *testing.T) {
		before := tags.Current()
		tags.Toggle("b")
		tags.Toggle("b")
		assert.ElementsMatch(t, before, tags.Current())

		before = tags.Current()
		tags.Toggle("z")
		tags.Toggle("z")
		assert.Equal(t, before, tags.Current())
	})
}

func TestTags_SuggestedCanBeSelected(t *testing.T) {
	var tags Tags
	tags.SetSuggested([]string{"ml", "ai"})
	tags.Toggle("ai")

	assert.Equal(t, []string{"ai"}, tags.Current())
	assert.Equal(t, []DisplayTag{{Name: "ai", Selected: true}, {Name: "ml", Selected: false}}, tags.Display())
	assert.Equal(t, []string{"ml", "ai"}, tags.Suggested())
}

func TestTags_CurrentIsACopy(t *testing.T) {
	var tags Tags
	assert.Equal(t, []string{}, tags.Current())
	tags.Add("x")
	cur := tags.Current()
	cur[0] = "changed"
	assert.Equal(t, []string{"x"}, tags.Current())
}
