package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/browser"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/knowledgepin/cli/internal/config"
	"github.com/knowledgepin/cli/internal/dashboard"
)

// DashboardCmd serves the web dashboard until its context is cancelled.
type DashboardCmd struct {
	svc     dashboard.Backend
	log     zerolog.Logger
	openURL func(string) error
}

type DashboardInput struct {
	Addr string
	Open bool
}

func (d DashboardCmd) Serve(ctx context.Context, in DashboardInput) error {
	ctrl := dashboard.NewController(d.svc, d.log)
	if err := ctrl.Load(ctx); err != nil {
		pterm.Warning.Printf("Dashboard started without data: %v\n", err)
	}
	srv := dashboard.NewServer(ctrl, d.log)

	ln, err := net.Listen("tcp", in.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", in.Addr, err)
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	dashURL := "http://" + ln.Addr().String()
	pterm.Success.Printf("Dashboard running at %s\n", dashURL)
	pterm.Info.Println("Press Ctrl+C to stop")

	if in.Open {
		open := d.openURL
		if open == nil {
			open = browser.OpenURL
		}
		if err := open(dashURL); err != nil {
			pterm.Warning.Printf("Could not open browser automatically: %v\n", err)
		}
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	pterm.Info.Println("Shutting down dashboard...")
	shutdownErr := srv.Shutdown()
	// Serve may not have reached Accept yet; closing the listener makes it return.
	_ = ln.Close()
	if err := <-errCh; err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return shutdownErr
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Serve the web dashboard",
	Long: `Serve a local web dashboard for browsing saved items. Items can be filtered by
list, tag and site, and edited or deleted in place.`,
	Args: cobra.NoArgs,
	RunE: runDashboard,
}

func init() {
	dashboardCmd.Flags().String(config.FlagAddr, config.Default().DashboardAddr, "Address to listen on")
	dashboardCmd.Flags().Bool("open", false, "Open the dashboard in the browser")

	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	rt := getRuntime(cmd)
	open, _ := cmd.Flags().GetBool("open")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := DashboardCmd{svc: rt.client, log: rt.log}
	return d.Serve(ctx, DashboardInput{Addr: rt.cfg.DashboardAddr, Open: open})
}
