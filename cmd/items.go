package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pkg/browser"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/knowledgepin/cli/internal/api"
	"github.com/knowledgepin/cli/internal/config"
	"github.com/knowledgepin/cli/internal/dashboard"
	"github.com/knowledgepin/cli/pkg/util"
)

// ItemsCmd browses and edits saved items independent of cobra.
type ItemsCmd struct {
	svc      dashboard.Backend
	log      zerolog.Logger
	prompter Prompter
	openURL  func(string) error
}

type ItemsListInput struct {
	List     string
	Tag      string
	Platform string
	View     string
	Columns  int
	Width    int
	Output   string
}

type ItemsUpdateInput struct {
	ID    string
	Title *string
	Note  *string
	Tags  []string
	// SetTags distinguishes clearing the tags from leaving them alone.
	SetTags bool
}

type ItemsDeleteInput struct {
	ID          string
	SkipConfirm bool
}

type ItemsOpenInput struct {
	ID string
}

const (
	viewTable   = "table"
	viewGallery = "gallery"
)

func (c ItemsCmd) controller() *dashboard.Controller {
	return dashboard.NewController(c.svc, c.log)
}

func (c ItemsCmd) List(ctx context.Context, in ItemsListInput) error {
	if err := validateOutput(in.Output); err != nil {
		return err
	}
	if in.View == "" {
		in.View = viewTable
	}
	if in.View != viewTable && in.View != viewGallery {
		return fmt.Errorf("unsupported --view value: use 'table' or 'gallery'")
	}

	listID, err := c.resolveList(ctx, in.List)
	if err != nil {
		return err
	}

	v, err := c.controller().Query(ctx, dashboard.Filter{List: listID, Tag: in.Tag, Platform: in.Platform})
	if err != nil {
		if in.Output != "json" {
			pterm.Error.Println(dashboard.FetchItemsFailed)
		}
		return CleanedUpAPIError{Err: err}
	}

	if in.Output == "json" {
		items := v.Items
		if items == nil {
			items = []api.SavedItem{}
		}
		return util.PrintPrettyJSON(items)
	}

	if len(v.Items) == 0 {
		pterm.Info.Println("No items found")
		return nil
	}

	if in.View == viewGallery {
		width := in.Width
		if width <= 0 {
			width = pterm.GetTerminalWidth()
		}
		pterm.Println(dashboard.Gallery(v.Items, in.Columns, width))
	} else {
		tableData := pterm.TableData{{"ID", "Title", "Site", "Tags", "List", "Added"}}
		for _, item := range v.Items {
			tableData = append(tableData, []string{
				item.ID,
				util.Ellipsize(util.OrDash(item.Title), 50),
				util.OrDash(dashboard.Platform(item.URL)),
				util.JoinOrDash(item.Tags...),
				util.OrDash(item.ListID),
				util.OrDash(item.DateAdded),
			})
		}
		PrintTableNoPad(tableData, true)
	}

	pterm.Println()
	pterm.Printf("Tags: %s\n", util.JoinOrDash(v.Options.Tags...))
	pterm.Printf("Platforms: %s\n", util.JoinOrDash(v.Options.Platforms...))
	return nil
}

// resolveList turns a --list value (an id or a list name) into a list id.
func (c ItemsCmd) resolveList(ctx context.Context, ref string) (string, error) {
	if ref == "" || ref == api.AllLists {
		return ref, nil
	}
	lists, err := c.svc.GetLists(ctx)
	if err != nil {
		return "", CleanedUpAPIError{Err: err}
	}
	list, ok := findList(lists, ref)
	if !ok {
		return "", fmt.Errorf("list %q not found", ref)
	}
	return list.ID, nil
}

func (c ItemsCmd) Update(ctx context.Context, in ItemsUpdateInput) error {
	if in.Title == nil && in.Note == nil && !in.SetTags {
		return fmt.Errorf("nothing to update: pass --title, --note or --tags")
	}

	ctrl := c.controller()
	if in.Title != nil {
		if err := ctrl.UpdateField(ctx, in.ID, api.FieldTitle, *in.Title); err != nil {
			return CleanedUpAPIError{Err: err}
		}
	}
	if in.Note != nil {
		if err := ctrl.UpdateField(ctx, in.ID, api.FieldNote, *in.Note); err != nil {
			return CleanedUpAPIError{Err: err}
		}
	}
	if in.SetTags {
		tags := lo.Uniq(lo.Compact(lo.Map(in.Tags, func(t string, _ int) string { return strings.TrimSpace(t) })))
		if err := ctrl.UpdateField(ctx, in.ID, api.FieldTags, tags); err != nil {
			return CleanedUpAPIError{Err: err}
		}
	}
	pterm.Success.Printf("Updated item: %s\n", in.ID)
	return nil
}

func (c ItemsCmd) Delete(ctx context.Context, in ItemsDeleteInput) error {
	if !in.SkipConfirm {
		ok, _ := c.prompter.Confirm(fmt.Sprintf("Are you sure you want to delete item '%s'?", in.ID))
		if !ok {
			pterm.Info.Println("Deletion cancelled")
			return nil
		}
	}

	ctrl := c.controller()
	err := ctrl.Delete(ctx, in.ID)
	if err != nil && !errors.Is(err, dashboard.ErrRefetch) {
		return CleanedUpAPIError{Err: err}
	}
	pterm.Success.Printf("Deleted item: %s\n", in.ID)
	if err != nil {
		pterm.Warning.Println(dashboard.FetchItemsFailed)
		return nil
	}
	pterm.Info.Printf("%d items remaining\n", len(ctrl.View().Items))
	return nil
}

func (c ItemsCmd) Open(ctx context.Context, in ItemsOpenInput) error {
	items, err := c.svc.GetItems(ctx, api.ItemFilter{List: api.AllLists})
	if err != nil {
		return CleanedUpAPIError{Err: err}
	}
	item, ok := lo.Find(items, func(it api.SavedItem) bool { return it.ID == in.ID })
	if !ok {
		return fmt.Errorf("item %s not found", in.ID)
	}

	open := c.openURL
	if open == nil {
		open = browser.OpenURL
	}
	if err := open(item.URL); err != nil {
		pterm.Warning.Printf("Could not open browser automatically: %v\n", err)
		pterm.Println(fmt.Sprintf("  %s", item.URL))
		return nil
	}
	pterm.Info.Printf("Opened %s\n", item.URL)
	return nil
}

var itemsCmd = &cobra.Command{
	Use:     "items",
	Aliases: []string{"item"},
	Short:   "Browse and edit saved items",
}

var itemsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved items",
	Long: `List saved items, optionally narrowed to a list, a tag or a site.

Examples:
  kpin items list --tag go
  kpin items list --list Reading --view gallery --columns 2`,
	Args: cobra.NoArgs,
	RunE: runItemsList,
}

var itemsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Edit the title, note or tags of an item",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemsUpdate,
}

var itemsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an item",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemsDelete,
}

var itemsOpenCmd = &cobra.Command{
	Use:   "open <id>",
	Short: "Open an item's page in the browser",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemsOpen,
}

func init() {
	itemsListCmd.Flags().StringP("output", "o", "", "Output format: json for the raw items")
	itemsListCmd.Flags().String("list", "", "List id or name (default: all lists)")
	itemsListCmd.Flags().String("tag", "", "Only items with this tag")
	itemsListCmd.Flags().String("platform", "", "Only items from this site (hostname)")
	itemsListCmd.Flags().String("view", viewTable, "How to show items: table or gallery")
	itemsListCmd.Flags().Int(config.FlagColumns, config.Default().Columns, "Gallery columns")

	itemsUpdateCmd.Flags().String("title", "", "New title")
	itemsUpdateCmd.Flags().String("note", "", "New note")
	itemsUpdateCmd.Flags().StringSlice("tags", []string{}, "New tags, comma separated (replaces all tags)")

	itemsDeleteCmd.Flags().BoolP("yes", "y", false, "Skip confirmation prompt")

	itemsCmd.AddCommand(itemsListCmd)
	itemsCmd.AddCommand(itemsUpdateCmd)
	itemsCmd.AddCommand(itemsDeleteCmd)
	itemsCmd.AddCommand(itemsOpenCmd)

	rootCmd.AddCommand(itemsCmd)
}

func runItemsList(cmd *cobra.Command, args []string) error {
	rt := getRuntime(cmd)
	output, _ := cmd.Flags().GetString("output")
	list, _ := cmd.Flags().GetString("list")
	tag, _ := cmd.Flags().GetString("tag")
	platform, _ := cmd.Flags().GetString("platform")
	view, _ := cmd.Flags().GetString("view")

	c := ItemsCmd{svc: rt.client, log: rt.log}
	return c.List(cmd.Context(), ItemsListInput{
		List:     list,
		Tag:      tag,
		Platform: platform,
		View:     view,
		Columns:  rt.cfg.Columns,
		Output:   output,
	})
}

func runItemsUpdate(cmd *cobra.Command, args []string) error {
	rt := getRuntime(cmd)
	in := ItemsUpdateInput{ID: args[0]}
	if cmd.Flags().Changed("title") {
		title, _ := cmd.Flags().GetString("title")
		in.Title = &title
	}
	if cmd.Flags().Changed("note") {
		note, _ := cmd.Flags().GetString("note")
		in.Note = &note
	}
	if cmd.Flags().Changed("tags") {
		in.Tags, _ = cmd.Flags().GetStringSlice("tags")
		in.SetTags = true
	}

	c := ItemsCmd{svc: rt.client, log: rt.log}
	return c.Update(cmd.Context(), in)
}

func runItemsDelete(cmd *cobra.Command, args []string) error {
	rt := getRuntime(cmd)
	skip, _ := cmd.Flags().GetBool("yes")

	c := ItemsCmd{svc: rt.client, log: rt.log, prompter: ptermPrompter{}}
	return c.Delete(cmd.Context(), ItemsDeleteInput{ID: args[0], SkipConfirm: skip})
}

func runItemsOpen(cmd *cobra.Command, args []string) error {
	rt := getRuntime(cmd)
	c := ItemsCmd{svc: rt.client, log: rt.log}
	return c.Open(cmd.Context(), ItemsOpenInput{ID: args[0]})
}
