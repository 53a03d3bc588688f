package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/hupe1980/embedmesh/core"
	"github.com/hupe1980/embedmesh/logging"
	"github.com/hupe1980/embedmesh/view"
)

const (
	defaultGracefulTimeout = 10 * time.Second
	serverRequestTimeout   = 30 * time.Second
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 35 * time.Second // must exceed serverRequestTimeout
	serverIdleTimeout      = 60 * time.Second
)

type serveFlags struct {
	items  string
	addr   string
	online bool
}

func newServeCmd(root *rootFlags) *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the preview server",
		Long: `Start an HTTP server rendering pages of the items file.

Query parameters: page, size (10, 25, 50), filter (all, replies, views),
tab (replies, overview) and context (true renders parent items).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, root, flags)
		},
	}

	cmd.Flags().StringVar(&flags.items, "items", "", "Path to the items file (JSON or YAML, required)")
	cmd.Flags().StringVar(&flags.addr, "address", "", "Address to listen on (defaults to the configured address)")
	cmd.Flags().BoolVar(&flags.online, "online", false, "Fetch rich embeds from the oEmbed endpoint")

	_ = cmd.MarkFlagRequired("items")

	return cmd
}

func runServe(cmd *cobra.Command, root *rootFlags, flags *serveFlags) error {
	cfg, logger, err := root.load()
	if err != nil {
		return err
	}

	items, err := readItems(flags.items)
	if err != nil {
		return err
	}

	addr := flags.addr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	p := newPreviewer(cfg, flags.online, logger)

	server := &http.Server{
		Addr:         addr,
		Handler:      newRouter(p, items, cfg.Pass.PageSize, logger),
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Preview server listening", "address", addr, "items", len(items))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down preview server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// newRouter serves rendered pages of items.
func newRouter(p *previewer, items []core.Item, defaultPageSize int, logger logging.Logger) http.Handler {
	logger = logging.OrNoOp(logger)

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Timeout(serverRequestTimeout),
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		state := parseState(req, defaultPageSize)

		out, err := p.Render(req.Context(), items, state)
		if err != nil {
			logger.Warn("Rendering preview failed", "request_id", middleware.GetReqID(req.Context()), "error", err)
			http.Error(w, "render failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(out))
	})

	return r
}

// parseState maps query parameters to a view state. Invalid values fall
// back to their defaults.
func parseState(req *http.Request, defaultPageSize int) view.State {
	q := req.URL.Query()

	state := view.State{
		Tab:      view.TabReplies,
		Filter:   view.ParseFilter(q.Get("filter")),
		Page:     1,
		PageSize: defaultPageSize,
	}

	if q.Get("tab") == string(view.TabOverview) {
		state.Tab = view.TabOverview
	}
	if n, err := strconv.Atoi(q.Get("page")); err == nil {
		state.Page = n
	}
	if n, err := strconv.Atoi(q.Get("size")); err == nil {
		state.PageSize = view.NormalizePageSize(n)
	}
	if ok, err := strconv.ParseBool(q.Get("context")); err == nil {
		state.ParentContext = ok
	}

	return state
}
