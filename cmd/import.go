package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/knowledgepin/cli/internal/extract"
	"github.com/knowledgepin/cli/internal/popup"
	"github.com/knowledgepin/cli/pkg/util"
)

// ImportCmd captures every saved page under a directory.
type ImportCmd struct {
	backend popup.Backend
	loader  extract.Loader
	log     zerolog.Logger
}

type ImportInput struct {
	Dir             string
	Patterns        []string
	IncludeHidden   bool
	Tags            []string
	List            string
	AcceptSuggested bool
	DryRun          bool
	Output          string
}

// ImportResult is one row of the import summary.
type ImportResult struct {
	File   string `json:"file"`
	Title  string `json:"title,omitempty"`
	URL    string `json:"url,omitempty"`
	ItemID string `json:"item_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (i ImportCmd) Import(ctx context.Context, in ImportInput) error {
	if err := validateOutput(in.Output); err != nil {
		return err
	}
	info, err := os.Stat(in.Dir)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", in.Dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", in.Dir)
	}

	pages, stats, err := util.FindPages(in.Dir, &util.PageWalkOptions{
		Patterns:      in.Patterns,
		IncludeHidden: in.IncludeHidden,
	})
	if err != nil {
		return err
	}
	i.log.Debug().
		Int("matched", stats.FilesMatched).
		Int("skipped", stats.FilesSkipped).
		Int("excluded", stats.FilesExcluded).
		Msg("directory walked")

	if len(pages) == 0 {
		if in.Output == "json" {
			return util.PrintPrettyJSON([]ImportResult{})
		}
		pterm.Info.Printf("No pages found in %s\n", in.Dir)
		return nil
	}

	if in.DryRun {
		return printImportPlan(in.Dir, pages, in.Output)
	}

	capture := CaptureCmd{backend: i.backend, loader: i.loader, log: i.log}

	results := make([]ImportResult, 0, len(pages))
	failed := 0
	for _, page := range pages {
		rel := relPath(in.Dir, page)
		res, _, err := capture.capture(ctx, CaptureInput{
			URL:             extract.FileURL(page),
			Tags:            in.Tags,
			List:            in.List,
			AcceptSuggested: in.AcceptSuggested,
			Yes:             true,
			Output:          "json",
		})
		row := ImportResult{File: rel}
		if err != nil {
			failed++
			row.Error = err.Error()
			i.log.Error().Err(err).Str("file", rel).Msg("import failed")
		} else {
			row.Title = res.Item.Title
			row.URL = res.Item.URL
			row.ItemID = res.Result.ItemID
		}
		results = append(results, row)

		if in.Output != "json" {
			if err != nil {
				pterm.Error.Printf("%s: %v\n", rel, err)
			} else {
				pterm.Success.Printf("%s\n", rel)
			}
		}
	}

	if in.Output == "json" {
		if err := util.PrintPrettyJSON(results); err != nil {
			return err
		}
	} else {
		tableData := pterm.TableData{{"File", "Title", "URL", "Status"}}
		for _, r := range results {
			status := "saved"
			if r.Error != "" {
				status = "failed"
			}
			tableData = append(tableData, []string{
				r.File,
				util.Ellipsize(util.OrDash(r.Title), 40),
				util.OrDash(r.URL),
				status,
			})
		}
		pterm.Println()
		PrintTableNoPad(tableData, true)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d pages failed", failed, len(pages))
	}
	if in.Output != "json" {
		pterm.Success.Printf("Imported %d pages\n", len(pages))
	}
	return nil
}

func printImportPlan(dir string, pages []string, output string) error {
	if output == "json" {
		rows := make([]ImportResult, 0, len(pages))
		for _, p := range pages {
			rows = append(rows, ImportResult{File: relPath(dir, p)})
		}
		return util.PrintPrettyJSON(rows)
	}

	tableData := pterm.TableData{{"File", "Size"}}
	var total int64
	for _, p := range pages {
		size := "-"
		if fi, err := os.Stat(p); err == nil {
			size = util.FormatBytes(fi.Size())
			total += fi.Size()
		}
		tableData = append(tableData, []string{relPath(dir, p), size})
	}
	PrintTableNoPad(tableData, true)
	pterm.Info.Printf("Dry run: %d pages (%s) would be imported\n", len(pages), util.FormatBytes(total))
	return nil
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

var importCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Capture every saved page under a directory",
	Long: `Capture every saved web page (.html, .htm) under a directory without prompts.
Pages keep the URL they declare (canonical link or og:url) when present.
.gitignore and .ignore files are honored.

Examples:
  kpin import ~/Downloads/pages --dry-run
  kpin import ./archive --pattern "2024/**/*.html" --tag archive --list Reading`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringP("output", "o", "", "Output format: json for the import summary")
	importCmd.Flags().StringArray("pattern", []string{}, "Glob of pages to import, relative to the directory (repeatable, default **/*.html and **/*.htm)")
	importCmd.Flags().Bool("hidden", false, "Include hidden files and directories")
	importCmd.Flags().StringArrayP("tag", "t", []string{}, "Tag to add to every page (repeatable)")
	importCmd.Flags().String("list", "", "List id or name to save into (default: first list)")
	importCmd.Flags().Bool("accept-suggested", false, "Select every suggested tag")
	importCmd.Flags().Bool("dry-run", false, "List the pages that would be imported")

	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	rt := getRuntime(cmd)
	output, _ := cmd.Flags().GetString("output")
	patterns, _ := cmd.Flags().GetStringArray("pattern")
	hidden, _ := cmd.Flags().GetBool("hidden")
	tags, _ := cmd.Flags().GetStringArray("tag")
	list, _ := cmd.Flags().GetString("list")
	accept, _ := cmd.Flags().GetBool("accept-suggested")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	i := ImportCmd{backend: rt.client, loader: rt.loader, log: rt.log}
	return i.Import(cmd.Context(), ImportInput{
		Dir:             args[0],
		Patterns:        patterns,
		IncludeHidden:   hidden,
		Tags:            tags,
		List:            list,
		AcceptSuggested: accept,
		DryRun:          dryRun,
		Output:          output,
	})
}
