// Command fake_machine_wiki serves a tiny troubleshooting wiki as a knowledge
// base MCP endpoint at /knowledgebases/{name}/mcp.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
)

func endpointPath(kbName string) string {
	return "/knowledgebases/" + kbName + "/mcp"
}

func main() {
	addr := os.Getenv("FAKE_MACHINE_WIKI_ADDR")
	if addr == "" {
		addr = ":8082"
	}
	kbName := os.Getenv("KNOWLEDGE_BASE_NAME")
	if kbName == "" {
		kbName = "machine-kb"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := endpointPath(kbName)
	httpSrv := &http.Server{Addr: addr, ReadHeaderTimeout: 5 * time.Second}
	streamable := server.NewStreamableHTTPServer(newMCPServer(NewKnowledgeBase(sampleArticles()...)),
		server.WithEndpointPath(path),
		server.WithStateLess(true),
		server.WithStreamableHTTPServer(httpSrv),
	)
	mux := http.NewServeMux()
	mux.Handle(path, streamable)
	httpSrv.Handler = mux

	errCh := make(chan error, 1)
	go func() {
		slog.Info("fake machine-wiki MCP server listening", "addr", addr, "path", path)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("fake machine-wiki server stopped", "err", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := streamable.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutdown", "err", err)
		}
	}
}
