package dashboard

import (
	"strings"

	"github.com/charmbracelet/lipgloss/v2"

	"github.com/knowledgepin/cli/internal/api"
)

// NoItemsText replaces an empty gallery.
const NoItemsText = "No items."

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
	cardTitleStyle = lipgloss.NewStyle().Bold(true)
	cardMetaStyle  = lipgloss.NewStyle().Faint(true)
	cardTagStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

// Card renders one item as a bordered terminal card of the given width.
func Card(item api.SavedItem, width int) string {
	lines := []string{cardTitleStyle.Render(item.Title)}
	if host := Platform(item.URL); host != "" {
		lines = append(lines, cardMetaStyle.Render(host))
	}
	if item.Note != "" {
		lines = append(lines, "", item.Note)
	}
	if len(item.Tags) > 0 {
		tags := make([]string, len(item.Tags))
		for i, t := range item.Tags {
			tags[i] = "#" + t
		}
		lines = append(lines, "", cardTagStyle.Render(strings.Join(tags, " ")))
	}
	if item.ID != "" {
		lines = append(lines, cardMetaStyle.Render(item.ID))
	}
	return cardStyle.Width(width).Render(strings.Join(lines, "\n"))
}

// Gallery renders items as cards laid out in columns.
func Gallery(items []api.SavedItem, columns, width int) string {
	if len(items) == 0 {
		return NoItemsText
	}
	if columns < 1 {
		columns = 1
	}
	const gutter = 2
	cardWidth := (width - gutter*(columns-1)) / columns
	if cardWidth < 20 {
		cardWidth = 20
	}
	cards := make([]string, len(items))
	for i, item := range items {
		cards[i] = Card(item, cardWidth)
	}
	return Masonry(cards, columns, gutter)
}

// Assign distributes blocks of the given heights over columns, each block going
// to the currently shortest column (leftmost on ties). Gutter rows follow every
// block. It returns the block indexes of each column.
func Assign(heights []int, columns, gutter int) [][]int {
	if columns < 1 {
		columns = 1
	}
	cols := make([][]int, columns)
	used := make([]int, columns)
	for i, h := range heights {
		shortest := 0
		for c := 1; c < columns; c++ {
			if used[c] < used[shortest] {
				shortest = c
			}
		}
		cols[shortest] = append(cols[shortest], i)
		used[shortest] += h + gutter
	}
	return cols
}

// Masonry lays out rendered cards in columns separated by gutter cells.
func Masonry(cards []string, columns, gutter int) string {
	if len(cards) == 0 {
		return ""
	}
	heights := make([]int, len(cards))
	for i, card := range cards {
		heights[i] = lipgloss.Height(card)
	}

	var rendered []string
	spacer := strings.Repeat(" ", gutter)
	for i, col := range Assign(heights, columns, gutter) {
		if len(col) == 0 {
			continue
		}
		blocks := make([]string, 0, len(col)*2)
		for j, idx := range col {
			if j > 0 && gutter > 0 {
				blocks = append(blocks, strings.Repeat("\n", gutter-1))
			}
			blocks = append(blocks, cards[idx])
		}
		if i > 0 && gutter > 0 {
			rendered = append(rendered, spacer)
		}
		rendered = append(rendered, lipgloss.JoinVertical(lipgloss.Left, blocks...))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}
