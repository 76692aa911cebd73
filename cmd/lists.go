package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/knowledgepin/cli/internal/api"
	"github.com/knowledgepin/cli/internal/extract"
	"github.com/knowledgepin/cli/pkg/util"
)

// ListsService defines the subset of the API client used by the lists commands.
type ListsService interface {
	GetLists(ctx context.Context) ([]api.List, error)
	CreateList(ctx context.Context, name string) (api.List, error)
	RelevantList(ctx context.Context, pageURL, title string) (*api.List, error)
}

// ListsCmd handles list operations independent of cobra.
type ListsCmd struct {
	svc    ListsService
	loader extract.Loader
}

type ListsListInput struct {
	Output string
}

type ListsCreateInput struct {
	Name   string
	Output string
}

type ListsSuggestInput struct {
	URL    string
	Title  string
	Output string
}

func (l ListsCmd) List(ctx context.Context, in ListsListInput) error {
	if err := validateOutput(in.Output); err != nil {
		return err
	}

	lists, err := l.svc.GetLists(ctx)
	if err != nil {
		return CleanedUpAPIError{Err: err}
	}
	if lists == nil {
		lists = []api.List{}
	}

	if in.Output == "json" {
		return util.PrintPrettyJSON(lists)
	}
	if len(lists) == 0 {
		pterm.Info.Println("No lists found")
		return nil
	}

	tableData := pterm.TableData{{"ID", "Name"}}
	for _, list := range lists {
		tableData = append(tableData, []string{list.ID, util.OrDash(list.Name)})
	}
	PrintTableNoPad(tableData, true)
	return nil
}

func (l ListsCmd) Create(ctx context.Context, in ListsCreateInput) error {
	if err := validateOutput(in.Output); err != nil {
		return err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return fmt.Errorf("list name must not be empty")
	}

	list, err := l.svc.CreateList(ctx, name)
	if err != nil {
		return CleanedUpAPIError{Err: err}
	}

	if in.Output == "json" {
		return util.PrintPrettyJSON(list)
	}
	pterm.Success.Printf("Created list: %s\n", util.FirstOrDash(list.Name, name))
	if list.ID != "" {
		pterm.Printf("  ID: %s\n", list.ID)
	}
	return nil
}

func (l ListsCmd) Suggest(ctx context.Context, in ListsSuggestInput) error {
	if err := validateOutput(in.Output); err != nil {
		return err
	}

	title := in.Title
	if title == "" && l.loader != nil {
		doc, err := l.loader.Load(ctx, in.URL)
		if err != nil {
			return fmt.Errorf("could not load %s: %w", in.URL, err)
		}
		title = extract.Title(doc)
	}

	list, err := l.svc.RelevantList(ctx, in.URL, title)
	if err != nil {
		return CleanedUpAPIError{Err: err}
	}

	if in.Output == "json" {
		return util.PrintPrettyJSON(list)
	}
	if list == nil {
		pterm.Info.Println("No relevant list found")
		return nil
	}
	PrintTableNoPad(pterm.TableData{
		{"Property", "Value"},
		{"ID", list.ID},
		{"Name", util.OrDash(list.Name)},
		{"Title", util.OrDash(title)},
	}, true)
	return nil
}

var listsCmd = &cobra.Command{
	Use:     "lists",
	Aliases: []string{"list"},
	Short:   "Manage lists",
}

var listsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all lists",
	Args:  cobra.NoArgs,
	RunE:  runListsList,
}

var listsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a list",
	Args:  cobra.ExactArgs(1),
	RunE:  runListsCreate,
}

var listsSuggestCmd = &cobra.Command{
	Use:   "suggest <url>",
	Short: "Ask the backend which list fits a page",
	Long: `Ask the backend which list fits a page. The page is loaded to read its
title unless --title is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runListsSuggest,
}

func init() {
	listsListCmd.Flags().StringP("output", "o", "", "Output format: json for raw API response")
	listsCreateCmd.Flags().StringP("output", "o", "", "Output format: json for raw API response")
	listsSuggestCmd.Flags().StringP("output", "o", "", "Output format: json for raw API response")
	listsSuggestCmd.Flags().String("title", "", "Page title (skips loading the page)")

	listsCmd.AddCommand(listsListCmd)
	listsCmd.AddCommand(listsCreateCmd)
	listsCmd.AddCommand(listsSuggestCmd)

	rootCmd.AddCommand(listsCmd)
}

func runListsList(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	l := ListsCmd{svc: getAPIClient(cmd)}
	return l.List(cmd.Context(), ListsListInput{Output: output})
}

func runListsCreate(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	l := ListsCmd{svc: getAPIClient(cmd)}
	return l.Create(cmd.Context(), ListsCreateInput{Name: args[0], Output: output})
}

func runListsSuggest(cmd *cobra.Command, args []string) error {
	rt := getRuntime(cmd)
	output, _ := cmd.Flags().GetString("output")
	title, _ := cmd.Flags().GetString("title")
	l := ListsCmd{svc: rt.client, loader: rt.loader}
	return l.Suggest(cmd.Context(), ListsSuggestInput{URL: args[0], Title: title, Output: output})
}
