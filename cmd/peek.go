package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/knowledgepin/cli/internal/content"
	"github.com/knowledgepin/cli/internal/extract"
	"github.com/knowledgepin/cli/internal/messaging"
	"github.com/knowledgepin/cli/internal/relay"
	"github.com/knowledgepin/cli/internal/tabs"
	"github.com/knowledgepin/cli/pkg/util"
)

// PeekCmd shows a page's basic metadata through the background relay.
type PeekCmd struct {
	loader extract.Loader
	log    zerolog.Logger
	now    func() time.Time
}

type PeekInput struct {
	URL    string
	Save   bool
	Output string
}

// peekSave is the saveData payload.
type peekSave struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}

func (p PeekCmd) Peek(ctx context.Context, in PeekInput) error {
	if err := validateOutput(in.Output); err != nil {
		return err
	}

	host := tabs.NewHost(p.loader, content.Injector(p.log))
	if _, err := host.Open(ctx, in.URL); err != nil {
		return fmt.Errorf("could not load %s: %w", in.URL, err)
	}
	background := messaging.NewRouter()
	relay.New(host, p.log).Register(background)

	resp, err := background.Send(ctx, messaging.Request{Action: messaging.ActionGetPageData})
	if err != nil {
		pterm.Error.Println("Error: Could not fetch page data")
		return err
	}
	var data extract.PageData
	if err := resp.Decode(&data); err != nil {
		return err
	}

	if in.Output == "json" && !in.Save {
		return util.PrintPrettyJSON(data)
	}
	if in.Output != "json" {
		desc := data.Description
		if desc == "" {
			desc = "No description available"
		}
		PrintTableNoPad(pterm.TableData{
			{"Property", "Value"},
			{"Title", orNA(data.Title)},
			{"URL", orNA(data.URL)},
			{"Description", desc},
		}, true)
	}
	if !in.Save {
		return nil
	}

	now := time.Now
	if p.now != nil {
		now = p.now
	}
	req, err := messaging.NewRequest(messaging.ActionSaveData, peekSave{
		Title:       data.Title,
		URL:         data.URL,
		Description: data.Description,
		Timestamp:   now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	resp, err = background.Send(ctx, req)
	var ack relay.Ack
	if err == nil {
		err = resp.Decode(&ack)
	}
	if err != nil || ack.Status != relay.StatusSuccess {
		pterm.Error.Println("Error saving data")
		if err == nil {
			err = fmt.Errorf("unexpected save status %q", ack.Status)
		}
		return err
	}

	if in.Output == "json" {
		return util.PrintPrettyJSON(map[string]any{"page": data, "status": ack.Status})
	}
	pterm.Success.Println("Data saved successfully!")
	return nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

var peekCmd = &cobra.Command{
	Use:   "peek <url>",
	Short: "Show a page's title, URL and description",
	Long: `Show a page's title, URL and description as read by the content script and
relayed by the background context. With --save the data is handed to the
background for logging; nothing is sent to the backend.`,
	Args: cobra.ExactArgs(1),
	RunE: runPeek,
}

func init() {
	peekCmd.Flags().StringP("output", "o", "", "Output format: json for the page data")
	peekCmd.Flags().Bool("save", false, "Send the page data to the background save handler")

	rootCmd.AddCommand(peekCmd)
}

func runPeek(cmd *cobra.Command, args []string) error {
	rt := getRuntime(cmd)
	output, _ := cmd.Flags().GetString("output")
	save, _ := cmd.Flags().GetBool("save")

	p := PeekCmd{loader: rt.loader, log: rt.log}
	return p.Peek(cmd.Context(), PeekInput{URL: args[0], Save: save, Output: output})
}
