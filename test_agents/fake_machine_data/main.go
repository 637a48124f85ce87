// Command fake_machine_data serves sample machine records over MCP so the agent
// and the probe command can be exercised without the real machine service.
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

const endpointPath = "/mcp"

func main() {
	addr := os.Getenv("FAKE_MACHINE_DATA_ADDR")
	if addr == "" {
		addr = ":8081"
	}
	apimKey := os.Getenv("APIM_SUBSCRIPTION_KEY")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mcpServer := newMCPServer(NewMachineStore(sampleMachines()...), apimKey)
	if err := serve(ctx, addr, mcpServer); err != nil {
		slog.Error("fake machine-data server stopped", "err", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, addr string, mcpServer *server.MCPServer) error {
	// 1. Health endpoint
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})

	// 2. Stateless MCP endpoint on the same server
	httpSrv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	streamable := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath(endpointPath),
		server.WithStateLess(true),
		server.WithStreamableHTTPServer(httpSrv),
		server.WithHTTPContextFunc(withSubscriptionKey),
	)
	mux.Handle(endpointPath, streamable)

	// 3. Serve until the signal
	errCh := make(chan error, 1)
	go func() {
		slog.Info("fake machine-data MCP server listening", "addr", addr, "path", endpointPath)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return streamable.Shutdown(shutdownCtx)
	}
}

func withSubscriptionKey(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, apimKeyCtx{}, r.Header.Get("Ocp-Apim-Subscription-Key"))
}
