package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/astrogalery/astrogalery/internal/cache"
	"github.com/astrogalery/astrogalery/internal/config"
	"github.com/astrogalery/astrogalery/internal/finder"
)

var cacheNames = []string{"identity", "astrometry", "finder", "refdata"}

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the on-disk caches",
	}
	cmd.AddCommand(newCacheShowCmd())
	cmd.AddCommand(newCacheClearCmd())
	return cmd
}

func newCacheShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List the caches and their sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			showCaches(cmd.OutOrStdout(), openStores(cfg.CacheDir))
			return nil
		},
	}
}

func showCaches(w io.Writer, st *stores) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Cache", "Path", "Entries"})
	t.AppendRow(table.Row{"identity", st.identity.Path(), st.identity.Len()})
	t.AppendRow(table.Row{"astrometry", st.astrometry.Path(), st.astrometry.Len()})
	t.AppendRow(table.Row{"finder", st.finder.Path(), st.finder.Len()})
	t.AppendRow(table.Row{"refdata", filepath.Join(st.dir, refdataDir), countFiles(filepath.Join(st.dir, refdataDir))})
	t.Render()
}

func countFiles(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "clear [identity|astrometry|finder|refdata]...",
		Short:     "Delete cached entries and artifacts",
		Long:      "Clears the named caches, or all of them when none is given.",
		ValidArgs: cacheNames,
		Args:      cobra.OnlyValidArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				args = cacheNames
			}
			if err := clearCaches(openStores(cfg.CacheDir), args); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared: %v\n", args)
			return nil
		},
	}
}

func clearCaches(st *stores, names []string) error {
	if slices.Contains(names, "identity") {
		if err := st.identity.Clear(); err != nil {
			return err
		}
	}
	if slices.Contains(names, "astrometry") {
		if err := clearIndex(st.astrometry, filepath.Join(st.dir, astrometryDir)); err != nil {
			return err
		}
	}
	if slices.Contains(names, "finder") {
		if err := clearIndex(st.finder, filepath.Join(st.dir, finder.ChartDir)); err != nil {
			return err
		}
	}
	if slices.Contains(names, "refdata") {
		if err := st.downloader().ClearCache(); err != nil {
			return fmt.Errorf("failed to clear reference data: %w", err)
		}
	}
	return nil
}

// clearIndex drops an artifact index together with the files it points to.
func clearIndex[T any](s *cache.Store[T], artifacts string) error {
	if err := s.Clear(); err != nil {
		return err
	}
	if err := os.RemoveAll(artifacts); err != nil {
		return fmt.Errorf("failed to remove %s: %w", artifacts, err)
	}
	return nil
}
