package cmd

import (
	"strings"

	"github.com/pterm/pterm"
)

// PrintTableNoPad renders data as a table without the trailing padding pterm
// adds to the last column.
func PrintTableNoPad(data pterm.TableData, hasHeader bool) {
	out, err := pterm.DefaultTable.WithHasHeader(hasHeader).WithData(data).Srender()
	if err != nil {
		pterm.Error.Printf("Could not render table: %v\n", err)
		return
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	pterm.Println(strings.Join(lines, "\n"))
}
