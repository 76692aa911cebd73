package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/knowledgepin/cli/internal/api"
	"github.com/knowledgepin/cli/internal/config"
	"github.com/knowledgepin/cli/internal/extract"
	"github.com/knowledgepin/cli/internal/logging"
)

// Set by the release build.
var (
	version = "dev"
	commit  = ""
)

var rootCmd = &cobra.Command{
	Use:   "kpin",
	Short: "Clip web pages into your KnowledgePin collection",
	Long: `kpin captures web pages into a KnowledgePin collection: it reads the page,
asks the backend for a summary, tag suggestions and lists, and saves the item.
It also browses and edits saved items from the terminal or a local web dashboard.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupRuntime,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to the config file (default $KPIN_CONFIG or ~/.config/knowledgepin/config.yaml)")
	pf.String("env-file", ".env", "Path to a .env file with KNOWLEDGEPIN_* variables")
	pf.String(config.FlagAPIURL, api.DefaultBaseURL, "KnowledgePin backend URL")
	pf.String(config.FlagLogLevel, "info", "Log level (debug, info, warn, error)")
	pf.String(config.FlagUserAgent, extract.DefaultUserAgent, "User agent used to fetch pages")
	pf.Duration(config.FlagTimeout, 0, "Timeout for backend and page requests (0 means none)")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	opts := []fang.Option{fang.WithVersion(version)}
	if commit != "" {
		opts = append(opts, fang.WithCommit(commit))
	}
	return fang.Execute(ctx, rootCmd, opts...)
}

type runtimeKey struct{}

// runtime is what every command needs once flags are parsed.
type runtime struct {
	cfg    config.Config
	log    zerolog.Logger
	client *api.Client
	loader extract.Loader
}

func setupRuntime(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.DefaultPath()
	}
	envFile, _ := cmd.Flags().GetString("env-file")

	cfg, err := config.Load(path, envFile)
	if err != nil {
		return err
	}
	if err := cfg.ApplyFlags(cmd.Flags()); err != nil {
		return err
	}

	log, err := logging.Stderr(cfg.LogLevel)
	if err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	rt := &runtime{
		cfg:    cfg,
		log:    log,
		client: api.NewClient(cfg.APIURL, api.WithHTTPClient(httpClient), api.WithLogger(log)),
		loader: extract.SchemeLoader{
			HTTP: extract.HTTPLoader{Client: httpClient, UserAgent: cfg.UserAgent},
			File: extract.FileLoader{},
		},
	}
	log.Debug().Str("api", cfg.APIURL).Str("config", path).Msg("runtime ready")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, runtimeKey{}, rt))
	return nil
}

func getRuntime(cmd *cobra.Command) *runtime {
	if rt, ok := cmd.Context().Value(runtimeKey{}).(*runtime); ok {
		return rt
	}
	// Commands run outside Execute (tests) fall back to defaults.
	cfg := config.Default()
	return &runtime{
		cfg:    cfg,
		log:    zerolog.Nop(),
		client: api.NewClient(cfg.APIURL),
		loader: extract.SchemeLoader{HTTP: extract.HTTPLoader{UserAgent: cfg.UserAgent}, File: extract.FileLoader{}},
	}
}

func getAPIClient(cmd *cobra.Command) *api.Client {
	return getRuntime(cmd).client
}

func validateOutput(output string) error {
	if output != "" && output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}
	return nil
}

func exitCode(err error) int {
	if err != nil {
		return 1
	}
	return 0
}

// Main is the process entrypoint used by main.go.
func Main() {
	os.Exit(exitCode(Execute(context.Background())))
}
