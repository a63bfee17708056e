package cmd

import (
	"io"
	"log/slog"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/astrogalery/astrogalery/internal/config"
	"github.com/astrogalery/astrogalery/internal/identity"
	"github.com/astrogalery/astrogalery/internal/simbad"
)

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve NAME...",
		Short: "Resolve object names to their catalog identity and tags",
		Long: `Looks names up the same way a build does: the built-in table first, then
the identity cache, then SIMBAD. New answers are added to the cache.`,
		Example: `  astrogalery resolve "M 31" ngc7000 Jupiter`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			var resolver identity.Resolver
			if !cfg.Offline {
				resolver = simbad.NewClient(cfg.Simbad.URL, cfg.Simbad.Timeout)
			}
			svc := identity.NewService(resolver, openStores(cfg.CacheDir).identity)

			results := make([]identity.Result, 0, len(args))
			for _, name := range args {
				results = append(results, svc.Resolve(cmd.Context(), name))
			}
			if err := svc.Persist(); err != nil {
				slog.Warn("Failed to save identity cache", "error", err)
			}

			printResolved(cmd.OutOrStdout(), args, results)
			return nil
		},
	}
}

func printResolved(w io.Writer, names []string, results []identity.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Ident", "Main ID", "Type", "Tags FR", "Tags EN", "Source", "Outcome"})
	for i, res := range results {
		e := res.Entry
		t.AppendRow(table.Row{
			names[i],
			e.Ident,
			e.MainID,
			identity.RefineType(e.TagsEN, e.OType),
			strings.Join(e.TagsFR, ", "),
			strings.Join(e.TagsEN, ", "),
			e.Source,
			res.Outcome,
		})
	}
	t.Render()
}
