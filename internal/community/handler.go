package community

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
)

// Handler serves community settings.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers language routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.service.Negotiate)
	r.Get("/", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	langs, err := h.service.Languages(r.Context())
	if err != nil {
		httpx.Fail(w, r, h.logger, "list languages failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"languages": langs,
		"preferred": LanguageFromContext(r.Context()),
	})
}
