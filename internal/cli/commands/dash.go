package commands

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"
)

// NewDashCmd creates the dash command
func NewDashCmd() *cobra.Command {
	var noBrowser bool

	cmd := &cobra.Command{
		Use:   "dash",
		Short: "Open the web dashboard in browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			opener := openBrowser
			if noBrowser {
				opener = nil
			}
			return runDash(cmd.Context(), opener)
		},
	}

	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Only print the dashboard URL")

	return cmd
}

func runDash(ctx context.Context, opener func(string) error, opts ...Option) error {
	o, err := newOptions(opts)
	if err != nil {
		return err
	}

	// The dashboard is behind the same guard as the API commands
	if _, _, err := requireSession(ctx, o); err != nil {
		return err
	}

	dashboardURL := o.serverURL + dashboardPath
	fmt.Fprintf(o.out, "URL: %s\n", dashboardURL)

	if opener == nil {
		return nil
	}
	if err := opener(dashboardURL); err != nil {
		return fmt.Errorf("failed to open browser: %w\nPlease visit: %s", err, dashboardURL)
	}
	return nil
}

// openBrowser opens the URL in the default browser
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
