package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Liad0205/safe-mcp/src/config"
)

// Run serves the registered tools on the configured transport and blocks
// until SIGINT/SIGTERM or ctx cancellation. When a rules file is
// configured, it is watched for changes and hot-reloaded while serving.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if s.cfg.RulesFile != "" {
		reloader, err := NewReloader(s, []string{s.cfg.RulesFile})
		if err != nil {
			return fmt.Errorf("rules watcher: %w", err)
		}
		go func() {
			if err := reloader.Run(ctx); err != nil {
				s.logger.Error("rules watcher stopped", "error", err)
			}
		}()
	}

	switch s.cfg.Server.Transport {
	case config.TransportStdio:
		return s.runStdio(ctx)
	case config.TransportHTTP:
		return s.runHTTP(ctx)
	default:
		return fmt.Errorf("unsupported transport: %s", s.cfg.Server.Transport)
	}
}

func (s *Server) runStdio(ctx context.Context) error {
	s.logger.Info("starting stdio transport")
	return s.MCP.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) runHTTP(ctx context.Context) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return s.MCP },
		&mcp.StreamableHTTPOptions{Logger: s.logger},
	)

	mux := http.NewServeMux()
	mux.Handle(s.cfg.Server.HTTP.Path, handler)

	ln, err := net.Listen("tcp", s.cfg.Server.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Server.HTTP.Addr, err)
	}
	s.logger.Info("starting HTTP transport", "addr", ln.Addr(), "path", s.cfg.Server.HTTP.Path)

	srv := &http.Server{Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP transport")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
