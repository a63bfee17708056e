// Package identity resolves object names to a classification and bilingual
// tags, layering a static local table, a persistent cache and SIMBAD.
package identity

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/astrogalery/astrogalery/internal/cache"
	"github.com/astrogalery/astrogalery/internal/catalog"
	"github.com/astrogalery/astrogalery/internal/models"
	"github.com/astrogalery/astrogalery/internal/simbad"
)

// Source tags stored with each entry.
const (
	SourceLocal       = "local"
	SourceRemote      = "simbad"
	SourceNotFound    = "simbad_not_found"
	SourceErrorPrefix = "simbad_error:"
	SourceOffline     = "offline"
)

// Outcome tells how a Result was produced.
type Outcome int

const (
	OutcomeLocal Outcome = iota
	OutcomeCacheHit
	OutcomeRemoteSuccess
	OutcomeRemoteNotFound
	OutcomeRemoteError
	// OutcomeOffline is returned on a cache miss when no resolver is
	// configured. Nothing is cached so a later online run can resolve it.
	OutcomeOffline
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLocal:
		return "local"
	case OutcomeCacheHit:
		return "cache_hit"
	case OutcomeRemoteSuccess:
		return "remote_success"
	case OutcomeRemoteNotFound:
		return "remote_not_found"
	case OutcomeRemoteError:
		return "remote_error"
	case OutcomeOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Remote reports whether the outcome came from a network round trip.
func (o Outcome) Remote() bool {
	return o == OutcomeRemoteSuccess || o == OutcomeRemoteNotFound || o == OutcomeRemoteError
}

// Entry is one resolved identity, as stored in the resolution cache.
type Entry struct {
	Ident     string   `json:"ident"`
	MainID    string   `json:"main_id"`
	OType     string   `json:"otype"`
	OTypeText string   `json:"otype_txt"`
	TagsFR    []string `json:"tags_fr"`
	TagsEN    []string `json:"tags_en"`
	Source    string   `json:"source"`
}

// Result pairs an entry with how it was obtained.
type Result struct {
	Entry   Entry
	Outcome Outcome
}

// Resolver is the remote object database.
type Resolver interface {
	QueryIdentifier(ctx context.Context, ident string) (simbad.Object, bool, error)
}

// Service resolves names in a fixed order: local table, cache, remote.
type Service struct {
	resolver Resolver
	store    *cache.Store[Entry]
}

// NewService creates the enrichment service. A nil resolver runs offline:
// local and cached identities still resolve, misses are not cached.
func NewService(resolver Resolver, store *cache.Store[Entry]) *Service {
	return &Service{
		resolver: resolver,
		store:    store,
	}
}

// Key returns the lookup identifier for a name and its cache key.
func Key(name string) (ident, key string) {
	ident, ok := catalog.NormalizeID(name)
	if !ok {
		ident = strings.TrimSpace(name)
	}
	return ident, strings.ToUpper(ident)
}

// Resolve never fails: transport problems are recorded in the returned and
// cached entry.
func (s *Service) Resolve(ctx context.Context, name string) Result {
	ident, key := Key(name)

	if local, ok := localObjects[key]; ok {
		return Result{
			Entry: Entry{
				Ident:     ident,
				MainID:    ident,
				OTypeText: local.typeEN + " / " + local.typeFR,
				TagsFR:    models.Dedupe(local.tagsFR),
				TagsEN:    models.Dedupe(local.tagsEN),
				Source:    SourceLocal,
			},
			Outcome: OutcomeLocal,
		}
	}

	if cached, ok := s.store.Get(key); ok {
		cached.TagsFR = models.Dedupe(cached.TagsFR)
		cached.TagsEN = models.Dedupe(cached.TagsEN)
		return Result{Entry: cached, Outcome: OutcomeCacheHit}
	}

	if s.resolver == nil {
		return Result{Entry: emptyEntry(ident, SourceOffline), Outcome: OutcomeOffline}
	}

	res := s.query(ctx, ident)
	if res.Outcome == OutcomeRemoteError && ctx.Err() != nil {
		// an interrupted run says nothing about the object
		return res
	}
	s.store.Set(key, res.Entry)
	return res
}

func (s *Service) query(ctx context.Context, ident string) Result {
	obj, found, err := s.resolver.QueryIdentifier(ctx, ident)
	if err != nil {
		slog.Warn("SIMBAD lookup failed", "ident", ident, "error", err)
		return Result{Entry: emptyEntry(ident, SourceErrorPrefix+err.Error()), Outcome: OutcomeRemoteError}
	}
	if !found {
		slog.Debug("SIMBAD has no match", "ident", ident)
		return Result{Entry: emptyEntry(ident, SourceNotFound), Outcome: OutcomeRemoteNotFound}
	}

	var fr, en []string
	if pair, ok := otypeTags[obj.OType]; ok {
		fr, en = pair.fr, pair.en
	} else if text := strings.ToLower(strings.TrimSpace(obj.OTypeText)); text != "" {
		fr, en = []string{text}, []string{text}
	}

	return Result{
		Entry: Entry{
			Ident:     ident,
			MainID:    obj.MainID,
			OType:     obj.OType,
			OTypeText: obj.OTypeText,
			TagsFR:    models.Dedupe(fr),
			TagsEN:    models.Dedupe(en),
			Source:    SourceRemote,
		},
		Outcome: OutcomeRemoteSuccess,
	}
}

func emptyEntry(ident, source string) Entry {
	return Entry{
		Ident:  ident,
		TagsFR: []string{},
		TagsEN: []string{},
		Source: source,
	}
}

// Persist flushes the resolution cache.
func (s *Service) Persist() error {
	return s.store.Persist()
}

// RefineType maps English tags to a display object type, returning fallback
// when no tag is recognized.
func RefineType(tagsEN []string, fallback string) string {
	for _, rule := range typeRules {
		for _, tag := range rule.tags {
			if slices.Contains(tagsEN, tag) {
				return rule.label
			}
		}
	}
	return fallback
}
