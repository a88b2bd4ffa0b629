package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/mns/internal/notice"
	"github.com/mrz1836/mns/internal/output"
	"github.com/mrz1836/mns/internal/web"
)

// shutdownTimeout bounds graceful shutdown of the page server.
const shutdownTimeout = 10 * time.Second

// serveCmd serves the whitelist page.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the whitelist page",
	Long: `Serve the Mind Name Service whitelist page over HTTP.

The page shows one button: "Connect your wallet" while disconnected,
"Join the Whitelist" once connected and "Loading..." while joining. With
--auto-connect the server tries to connect once on start, like the page
does when it loads.

Example:
  mns serve
  mns serve --listen 0.0.0.0:8080 --auto-connect=false`,
	RunE: runServe,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	serveListen      string
	serveAutoConnect bool
)

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (default: server.listen)")
	serveCmd.Flags().BoolVar(&serveAutoConnect, "auto-connect", true, "connect once on start")
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Notices go to the page instead of the terminal: to the response of
	// the request that raised them, or to the next page load.
	recorder := &notice.Recorder{}
	cmdCtx.WithNotifier(notice.Routed{Fallback: recorder}).WithChooser(nil)

	sess, err := cmdCtx.NewSession()
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	listen := cfg.Server.Listen
	if serveListen != "" {
		listen = serveListen
	}
	autoConnect := cfg.Server.AutoConnect
	if cmd.Flags().Changed("auto-connect") {
		autoConnect = serveAutoConnect
	}

	srv := web.New(web.Config{
		Listen:         listen,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		ConnectTimeout: cfg.ConnectTimeout(),
	}, sess, recorder, web.WithLogger(logger), web.WithMetrics(cmdCtx.Metrics))

	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	ctx, stop := signal.NotifyContext(base, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	output.Info(cmd.ErrOrStderr(), "serving the whitelist page on http://"+srv.Listen())
	if autoConnect {
		go srv.AutoConnect(ctx)
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
