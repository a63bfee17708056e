package cmd

import (
	"path/filepath"

	"github.com/astrogalery/astrogalery/internal/astrometry"
	"github.com/astrogalery/astrogalery/internal/cache"
	"github.com/astrogalery/astrogalery/internal/finder"
	"github.com/astrogalery/astrogalery/internal/identity"
	"github.com/astrogalery/astrogalery/internal/refdata"
)

// Cache documents and artifact directories under the cache dir.
const (
	identityFile   = "object_info.json"
	astrometryFile = "astrometry_index.json"
	finderFile     = "finder_index.json"
	astrometryDir  = "astrometry"
	refdataDir     = "refdata"
)

type stores struct {
	dir        string
	identity   *cache.Store[identity.Entry]
	astrometry *cache.Store[astrometry.Entry]
	finder     *cache.Store[finder.Entry]
}

func openStores(dir string) *stores {
	return &stores{
		dir:        dir,
		identity:   cache.Open[identity.Entry](filepath.Join(dir, identityFile)),
		astrometry: cache.Open[astrometry.Entry](filepath.Join(dir, astrometryFile)),
		finder:     cache.Open[finder.Entry](filepath.Join(dir, finderFile)),
	}
}

func (s *stores) downloader() *refdata.Downloader {
	return refdata.NewDownloader(refdata.DownloadConfig{CacheDir: filepath.Join(s.dir, refdataDir)})
}
