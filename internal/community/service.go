package community

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sizang-hub/sizang-hub/internal/forums"
	"github.com/sizang-hub/sizang-hub/internal/platform/cache"
)

// CategoryImporter stores forum categories without a permission check.
type CategoryImporter interface {
	ImportCategory(ctx context.Context, input forums.CategoryInput) (forums.Category, error)
}

// Service seeds and serves community settings.
type Service struct {
	repo       RepositoryPort
	categories CategoryImporter
	cache      *cache.JSONCache
	logger     *slog.Logger
}

// NewService builds Service instance. A nil cache disables caching.
func NewService(repo RepositoryPort, categories CategoryImporter, c *cache.JSONCache, logger *slog.Logger) *Service {
	if c == nil {
		c = cache.NewJSONCache(nil, "languages", 0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, categories: categories, cache: c, logger: logger}
}

// Seed applies f: languages are replaced and categories upserted by slug,
// parents before children.
func (s *Service) Seed(ctx context.Context, f File) error {
	if err := s.repo.ReplaceLanguages(ctx, f.Languages); err != nil {
		return fmt.Errorf("community: seed languages: %w", err)
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("language cache bump", slog.Any("error", err))
	}
	if s.categories == nil {
		return nil
	}
	ids := map[string]string{}
	pending := f.Categories
	for len(pending) > 0 {
		var next []CategorySeed
		for _, seed := range pending {
			var parent *string
			if seed.Parent != "" {
				id, ok := ids[seed.Parent]
				if !ok {
					next = append(next, seed)
					continue
				}
				parent = &id
			}
			cat, err := s.categories.ImportCategory(ctx, forums.CategoryInput{
				Name:        seed.Name,
				Description: seed.Description,
				Slug:        seed.Slug,
				SortOrder:   seed.SortOrder,
				ParentID:    parent,
			})
			if err != nil {
				return fmt.Errorf("community: seed category %s: %w", seed.Slug, err)
			}
			ids[seed.Slug] = cat.ID
		}
		if len(next) == len(pending) {
			return fmt.Errorf("community: category parents form a cycle")
		}
		pending = next
	}
	s.logger.Info("community seeded", slog.Int("languages", len(f.Languages)), slog.Int("categories", len(f.Categories)))
	return nil
}

// Languages returns the active languages, default first.
func (s *Service) Languages(ctx context.Context) ([]Language, error) {
	var all []Language
	err := s.cache.Fetch(ctx, &all, func(ctx context.Context) (any, error) {
		return s.repo.ListLanguages(ctx)
	}, "all")
	if err != nil {
		return nil, err
	}
	active := make([]Language, 0, len(all))
	for _, l := range all {
		if l.IsActive {
			active = append(active, l)
		}
	}
	return active, nil
}

type languageKey struct{}

// LanguageFromContext returns the negotiated content language, or "".
func LanguageFromContext(ctx context.Context) string {
	code, _ := ctx.Value(languageKey{}).(string)
	return code
}

// Negotiate stores the best content language for each request's
// Accept-Language header. An explicit ?lang= wins when it is active.
func (s *Service) Negotiate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		langs, err := s.Languages(r.Context())
		if err != nil {
			s.logger.Warn("load languages", slog.Any("error", err))
			next.ServeHTTP(w, r)
			return
		}
		code := NewMatcher(langs).Match(r.Header.Get("Accept-Language"))
		if explicit := r.URL.Query().Get("lang"); explicit != "" {
			if canon, err := canonical(explicit); err == nil {
				for _, l := range langs {
					if l.Code == canon {
						code = canon
						break
					}
				}
			}
		}
		w.Header().Add("Vary", "Accept-Language")
		if code != "" {
			w.Header().Set("Content-Language", code)
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), languageKey{}, code)))
	})
}
