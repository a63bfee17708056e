package cmd

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/astrogalery/astrogalery/internal/astrometry"
	"github.com/astrogalery/astrogalery/internal/catalog"
	"github.com/astrogalery/astrogalery/internal/config"
	"github.com/astrogalery/astrogalery/internal/finder"
	"github.com/astrogalery/astrogalery/internal/gallery"
	"github.com/astrogalery/astrogalery/internal/identity"
	"github.com/astrogalery/astrogalery/internal/nova"
	"github.com/astrogalery/astrogalery/internal/refdata"
	"github.com/astrogalery/astrogalery/internal/simbad"
)

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [root]",
		Short: "Scan captures and write the gallery data files",
		Long: `Scans the capture tree for final JPEG images, enriches every observation
and writes data/images.json, data/objects.json and report.yaml into the
output directory.

Plate solving needs a nova.astrometry.net key in NOVA_ASTROMETRY_API_KEY;
without it the build still runs and skips astrometry and finder charts.`,
		Example: `  # Build from the current directory into ./site
  astrogalery build

  # Solve every image, not only the latest one per object
  astrogalery build ~/captures --mode all

  # Rebuild from cache only
  astrogalery build --offline`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				viper.Set("root", args[0])
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runBuild(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringP("output", "o", "", "site output directory (default \"site\")")
	cmd.Flags().String("mode", "", "images to plate-solve: latest_per_object or all")
	cmd.Flags().String("catalog-table", "", "reference spreadsheet (.xlsx, .csv or .parquet)")
	cmd.Flags().Bool("parquet", false, "also export data/images.parquet")
	cmd.Flags().Bool("finder", true, "draw finder charts for solved objects")
	_ = viper.BindPFlag("output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("nova.mode", cmd.Flags().Lookup("mode"))
	_ = viper.BindPFlag("catalog_table", cmd.Flags().Lookup("catalog-table"))
	_ = viper.BindPFlag("parquet", cmd.Flags().Lookup("parquet"))
	_ = viper.BindPFlag("finder.enabled", cmd.Flags().Lookup("finder"))

	return cmd
}

func runBuild(ctx context.Context, cfg config.Config, w io.Writer) error {
	st := openStores(cfg.CacheDir)

	tablePath := cfg.CatalogTable
	if tablePath != "" && !filepath.IsAbs(tablePath) {
		tablePath = filepath.Join(cfg.Root, tablePath)
	}
	table, err := catalog.LoadTable(tablePath)
	if err != nil {
		slog.Warn("Catalog table unavailable", "path", tablePath, "error", err)
		table = catalog.EmptyTable()
	}

	var (
		resolver identity.Resolver
		cone     finder.ConeSearcher
	)
	if cfg.Offline {
		slog.Info("Offline build, only local and cached identities resolve")
	} else {
		sc := simbad.NewClient(cfg.Simbad.URL, cfg.Simbad.Timeout)
		resolver, cone = sc, sc
	}

	deps := gallery.Deps{
		Identity: identity.NewService(resolver, st.identity),
		Table:    table,
	}

	if !cfg.Offline {
		nc := nova.NewClient(cfg.Nova.APIURL, cfg.Nova.SiteURL, cfg.Nova.Timeout)
		deps.Auth = nc
		deps.Astrometry = astrometry.New(nc, astrometry.ImageRenderer{}, st.astrometry, astrometry.Options{
			CacheDir:          filepath.Join(cfg.CacheDir, astrometryDir),
			OutputDir:         cfg.Output,
			PollInterval:      cfg.Nova.PollInterval,
			SubmissionTimeout: cfg.Nova.SubmissionTimeout,
			JobTimeout:        cfg.Nova.JobTimeout,
		})

		if cfg.Finder.Enabled {
			provider := refdata.NewProvider(st.downloader(), refdata.Sources{
				StarsURL:     cfg.Finder.StarsURL,
				LinesURL:     cfg.Finder.LinesURL,
				MaxMagnitude: cfg.Finder.StarMagLimit,
			})
			deps.Charts = finder.New(provider, cone, st.finder, finder.Options{
				CacheDir:        filepath.Join(cfg.CacheDir, finder.ChartDir),
				OutputDir:       cfg.Output,
				Size:            cfg.Finder.Size,
				FOV:             cfg.Finder.FOV,
				InnerFOV:        cfg.Finder.InnerFOV,
				StarMagLimit:    cfg.Finder.StarMagLimit,
				LabelMagLimit:   cfg.Finder.LabelMagLimit,
				MaxLabels:       cfg.Finder.MaxLabels,
				LabelSeparation: cfg.Finder.LabelSeparation,
			})
		}
	}

	pipeline := gallery.New(gallery.Options{
		Root:      cfg.Root,
		Output:    cfg.Output,
		Mode:      cfg.Nova.Mode,
		APIKey:    cfg.Nova.APIKey,
		Parquet:   cfg.Parquet,
		BaseURL:   cfg.BaseURL,
		SiteTitle: cfg.SiteTitle,
		Exclude:   []string{cfg.CacheDir},
	}, deps)

	res, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}

	res.PrintSummary(w)
	slog.Info("Gallery data written", "output", cfg.Output, "images", len(res.Records), "objects", len(res.Objects))
	return nil
}
