package app

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/embedmesh/view"
)

const defaultRenderTimeout = 30 * time.Second

type renderFlags struct {
	items    string
	page     int
	pageSize int
	filter   string
	overview bool
	context  bool
	online   bool
	timeout  time.Duration
}

func newRenderCmd(root *rootFlags) *cobra.Command {
	flags := &renderFlags{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one page of items and print the resulting HTML",
		Long: `Render one page of items into the built-in page skeleton and print it.

Without --online no widget script is available, so every slot receives the
static fallback link after the readiness timeout.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRender(cmd, root, flags)
		},
	}

	cmd.Flags().StringVar(&flags.items, "items", "", "Path to the items file (JSON or YAML, required)")
	cmd.Flags().IntVar(&flags.page, "page", 1, "Page number")
	cmd.Flags().IntVar(&flags.pageSize, "page-size", 0, "Page size (10, 25 or 50; defaults to the configured size)")
	cmd.Flags().StringVar(&flags.filter, "filter", string(view.FilterAll), "Filter: all, replies or views")
	cmd.Flags().BoolVar(&flags.overview, "overview", false, "Render the overview tab (no embeds)")
	cmd.Flags().BoolVar(&flags.context, "parent-context", false, "Render each item's parent above it")
	cmd.Flags().BoolVar(&flags.online, "online", false, "Fetch rich embeds from the oEmbed endpoint")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", defaultRenderTimeout, "Overall render timeout")

	_ = cmd.MarkFlagRequired("items")

	return cmd
}

func runRender(cmd *cobra.Command, root *rootFlags, flags *renderFlags) error {
	cfg, logger, err := root.load()
	if err != nil {
		return err
	}

	items, err := readItems(flags.items)
	if err != nil {
		return err
	}

	state := view.State{
		Tab:           view.TabReplies,
		Filter:        view.ParseFilter(flags.filter),
		Page:          flags.page,
		PageSize:      view.NormalizePageSize(flags.pageSize),
		ParentContext: flags.context,
	}
	if flags.pageSize == 0 {
		state.PageSize = cfg.Pass.PageSize
	}
	if flags.overview {
		state.Tab = view.TabOverview
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
	defer cancel()

	logger.Debug("Rendering preview", "items", len(items), "page", state.Page, "filter", string(state.Filter))

	out, err := newPreviewer(cfg, flags.online, logger).Render(ctx, items, state)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
	return err
}
