package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/knowledgepin/cli/internal/api"
	"github.com/knowledgepin/cli/internal/content"
	"github.com/knowledgepin/cli/internal/extract"
	"github.com/knowledgepin/cli/internal/popup"
	"github.com/knowledgepin/cli/internal/tabs"
	"github.com/knowledgepin/cli/pkg/util"
)

// CaptureCmd runs the popup flow for one page outside of cobra.
type CaptureCmd struct {
	backend  popup.Backend
	loader   extract.Loader
	prompter Prompter
	log      zerolog.Logger
}

type CaptureInput struct {
	URL             string
	Title           string
	Note            string
	Tags            []string
	List            string
	NoImage         bool
	AcceptSuggested bool
	Yes             bool
	Output          string
}

// CaptureResult is what `capture -o json` prints.
type CaptureResult struct {
	Item   api.SavedItem    `json:"item"`
	Result api.SaveResult   `json:"result"`
	Faults []captureFault   `json:"faults"`
	Page   extract.PageInfo `json:"page"`
}

type captureFault struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

func (c CaptureCmd) Capture(ctx context.Context, in CaptureInput) error {
	if err := validateOutput(in.Output); err != nil {
		return err
	}
	res, cancelled, err := c.capture(ctx, in)
	if err != nil || cancelled {
		return err
	}

	if in.Output == "json" {
		return util.PrintPrettyJSON(res)
	}
	pterm.Success.Println("Saved!")
	printSavedItem(res.Item, res.Result)
	return nil
}

// capture opens the page, applies the input and saves. cancelled reports that
// the user declined to save.
func (c CaptureCmd) capture(ctx context.Context, in CaptureInput) (res CaptureResult, cancelled bool, err error) {
	var hostOpts []tabs.HostOption
	pageURL := in.URL
	if extract.IsFileURL(pageURL) {
		// Saved pages are recorded under the address they declare, or an
		// absolute file:// URL when they declare none.
		pageURL = extract.FileURL(extract.FilePath(pageURL))
		hostOpts = append(hostOpts, tabs.WithCanonicalURL())
	}

	host := tabs.NewHost(c.loader, content.Injector(c.log), hostOpts...)
	if _, err := host.Open(ctx, pageURL); err != nil {
		return res, false, fmt.Errorf("could not load %s: %w", in.URL, err)
	}

	s := popup.NewSession(host, c.backend, popup.WithLogger(c.log), popup.WithTags(in.Tags...))
	if err := s.Open(ctx); err != nil {
		return res, false, err
	}
	s.Wait()

	if err := applyCaptureInput(s, in); err != nil {
		return res, false, err
	}
	if in.Output != "json" {
		printFaults(s.Faults())
	}

	if !in.Yes {
		ok, err := c.review(s)
		if err != nil {
			return res, false, err
		}
		if !ok {
			pterm.Info.Println("Capture cancelled")
			return res, true, nil
		}
	}

	item, result, err := s.Save(ctx)
	if err != nil {
		if n := s.View().Notice; n != nil {
			pterm.Error.Println(n.Text)
		}
		return res, false, CleanedUpAPIError{Err: err}
	}

	v := s.View()
	return CaptureResult{
		Item:   item,
		Result: result,
		Faults: faultMessages(v.Faults),
		Page:   v.Page,
	}, false, nil
}

func applyCaptureInput(s *popup.Session, in CaptureInput) error {
	if in.Title != "" {
		s.SetTitle(in.Title)
	}
	if in.Note != "" {
		s.SetNote(in.Note)
	}
	if in.AcceptSuggested {
		for _, t := range s.View().Tags {
			if !t.Selected {
				s.ToggleTag(t.Name)
			}
		}
	}
	if in.List != "" {
		list, ok := findList(s.View().Lists, in.List)
		if !ok {
			return fmt.Errorf("list %q not found", in.List)
		}
		s.SelectList(list.ID)
	}
	if in.NoImage {
		s.RemoveImage()
	}
	return nil
}

// findList matches a list by id, then by case-insensitive name.
func findList(lists []api.List, ref string) (api.List, bool) {
	if l, ok := lo.Find(lists, func(l api.List) bool { return l.ID == ref }); ok {
		return l, true
	}
	return lo.Find(lists, func(l api.List) bool { return strings.EqualFold(l.Name, ref) })
}

// review shows the capture and lets the user edit it before saving.
func (c CaptureCmd) review(s *popup.Session) (bool, error) {
	v := s.View()
	printCapturePreview(v)

	title, err := c.prompter.Text("Title", v.Title)
	if err != nil {
		return false, err
	}
	s.SetTitle(title)

	note, err := c.prompter.Text("Note", v.Note)
	if err != nil {
		return false, err
	}
	s.SetNote(note)

	names := lo.Map(v.Tags, func(t popup.DisplayTag, _ int) string { return t.Name })
	chosen, err := c.prompter.MultiSelect("Tags", names, v.Selected)
	if err != nil {
		return false, err
	}
	for _, t := range v.Tags {
		if t.Selected != slices.Contains(chosen, t.Name) {
			s.ToggleTag(t.Name)
		}
	}

	if len(v.Lists) > 0 {
		options := lo.Map(v.Lists, func(l api.List, _ int) string { return l.Name })
		current, _ := lo.Find(v.Lists, func(l api.List) bool { return l.ID == v.ListID })
		name, err := c.prompter.Select("List", options, current.Name)
		if err != nil {
			return false, err
		}
		if l, ok := findList(v.Lists, name); ok {
			s.SelectList(l.ID)
		}
	}

	if v.ImageVisible {
		keep, err := c.prompter.Confirm(fmt.Sprintf("Keep image %s?", v.ImageURL))
		if err != nil {
			return false, err
		}
		if !keep {
			s.RemoveImage()
		}
	}

	return c.prompter.Confirm("Save this page?")
}

func printCapturePreview(v popup.View) {
	image := "-"
	if v.ImageVisible {
		image = v.ImageURL
	}
	PrintTableNoPad(pterm.TableData{
		{"Property", "Value"},
		{"Title", util.OrDash(v.Title)},
		{"Site", util.OrDash(v.Hostname)},
		{"Image", image},
		{"Note", util.OrDash(util.Ellipsize(v.Note, 120))},
		{"Tags", util.JoinOrDash(v.Selected...)},
		{"Suggested", util.JoinOrDash(lo.Map(v.Tags, func(t popup.DisplayTag, _ int) string { return t.Name })...)},
	}, true)
}

func printSavedItem(item api.SavedItem, res api.SaveResult) {
	PrintTableNoPad(pterm.TableData{
		{"Property", "Value"},
		{"ID", util.OrDash(res.ItemID)},
		{"Title", util.OrDash(item.Title)},
		{"URL", item.URL},
		{"List", util.OrDash(item.ListID)},
		{"Tags", util.JoinOrDash(item.Tags...)},
		{"Image", util.OrDash(item.ImageURL)},
		{"Saved At", item.Timestamp},
	}, true)
}

func printFaults(faults []popup.Fault) {
	for _, f := range faults {
		pterm.Warning.Printf("%s: %s\n", f.Stage, CleanedUpAPIError{Err: f.Err}.Error())
	}
}

func faultMessages(faults []popup.Fault) []captureFault {
	return lo.Map(faults, func(f popup.Fault, _ int) captureFault {
		return captureFault{Stage: f.Stage, Message: CleanedUpAPIError{Err: f.Err}.Error()}
	})
}

var captureCmd = &cobra.Command{
	Use:   "capture <url>",
	Short: "Capture a web page into your collection",
	Long: `Load a page, ask the backend for a summary, tag suggestions and lists,
review the result and save it.

Examples:
  # Review interactively before saving
  kpin capture https://go.dev/blog/go1.22

  # Save without prompts, adding a tag and all suggested tags
  kpin capture https://go.dev/blog/go1.22 --tag go --accept-suggested --yes

  # Capture a page saved to disk
  kpin capture ./saved/article.html --list Reading --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runCapture,
}

func init() {
	captureCmd.Flags().StringP("output", "o", "", "Output format: json for the saved item")
	captureCmd.Flags().StringArrayP("tag", "t", []string{}, "Tag to add (repeatable)")
	captureCmd.Flags().String("note", "", "Note to save instead of the generated summary")
	captureCmd.Flags().String("title", "", "Title to save instead of the page title")
	captureCmd.Flags().String("list", "", "List id or name to save into (default: first list)")
	captureCmd.Flags().Bool("no-image", false, "Save without the preview image")
	captureCmd.Flags().Bool("accept-suggested", false, "Select every suggested tag")
	captureCmd.Flags().BoolP("yes", "y", false, "Save without interactive review")

	rootCmd.AddCommand(captureCmd)
}

func runCapture(cmd *cobra.Command, args []string) error {
	rt := getRuntime(cmd)
	output, _ := cmd.Flags().GetString("output")
	tags, _ := cmd.Flags().GetStringArray("tag")
	note, _ := cmd.Flags().GetString("note")
	title, _ := cmd.Flags().GetString("title")
	list, _ := cmd.Flags().GetString("list")
	noImage, _ := cmd.Flags().GetBool("no-image")
	accept, _ := cmd.Flags().GetBool("accept-suggested")
	yes, _ := cmd.Flags().GetBool("yes")

	c := CaptureCmd{backend: rt.client, loader: rt.loader, prompter: ptermPrompter{}, log: rt.log}
	return c.Capture(cmd.Context(), CaptureInput{
		URL:             args[0],
		Title:           title,
		Note:            note,
		Tags:            tags,
		List:            list,
		NoImage:         noImage,
		AcceptSuggested: accept,
		Yes:             yes || output == "json",
		Output:          output,
	})
}
