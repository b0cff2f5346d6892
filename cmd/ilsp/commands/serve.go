package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/ilsp/am"
	"github.com/teranos/ilsp/errors"
	"github.com/teranos/ilsp/logger"
	"github.com/teranos/ilsp/server"
	"github.com/teranos/ilsp/version"
)

// ServeCmd runs the language server
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Run the ilsp language server",
	Long: `Run the language server. With --stdio the LSP stream uses stdin and
stdout, which is what editors expect. With --ws the server accepts LSP sessions
over WebSocket at /lsp and reports its state at /healthz.

Without either flag the transport comes from server.transport in the config.`,
	RunE: runServe,
}

var (
	serveStdio bool
	serveWS    string
)

func init() {
	ServeCmd.Flags().BoolVar(&serveStdio, "stdio", false, "Serve one session over stdin/stdout")
	ServeCmd.Flags().StringVar(&serveWS, "ws", "", "Serve WebSocket sessions on this address (e.g. :7437)")
	ServeCmd.MarkFlagsMutuallyExclusive("stdio", "ws")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, intro, explicit, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	switch {
	case serveStdio:
		cfg.Server.Transport = am.TransportStdio
	case serveWS != "":
		cfg.Server.Transport = am.TransportWebSocket
		cfg.Server.Address = serveWS
	}

	logger.Infow("Starting language server",
		"transport", cfg.Server.Transport,
		"version", version.Get().Short(),
		"config_files", len(intro.Files),
	)
	log := logger.ComponentLogger("server")
	srv, err := server.New(cfg, log)
	if err != nil {
		return errors.Wrap(err, "failed to create server")
	}
	if err := srv.WatchConfig(explicit, intro.Files); err != nil {
		log.Warnw("Config watching disabled", logger.FieldError, err)
	}

	if cfg.Server.Transport == am.TransportStdio {
		// stdout belongs to the protocol stream, nothing else may print
		err := srv.RunStdio()
		if stopErr := srv.Stop(); err == nil {
			err = stopErr
		}
		return err
	}
	return serveWebSocket(srv, cfg.Server.Address)
}

func serveWebSocket(srv *server.Server, addr string) error {
	pterm.Info.Printfln("%s listening on ws://%s/lsp", version.Get().String(), addr)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		if err != nil {
			logger.Errorw("WebSocket server stopped unexpectedly", logger.FieldError, err)
		}
		_ = srv.Stop()
		return errors.Wrap(err, "server stopped")
	case <-sigChan:
		pterm.Info.Println("Shutting down gracefully (press Ctrl+C again to force)...")
	}

	shutdownDone := make(chan error, 1)
	go func() {
		shutdownDone <- srv.Stop()
	}()

	select {
	case err := <-shutdownDone:
		if err != nil {
			return errors.Wrap(err, "graceful shutdown failed")
		}
		pterm.Success.Println("Server stopped")
		return nil
	case <-sigChan:
		pterm.Warning.Println("Forced shutdown")
		os.Exit(1)
	}
	return nil
}
