package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
)

// PermissionsHandler exposes the role table and guard decisions to clients.
type PermissionsHandler struct {
	logger *slog.Logger
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger) *PermissionsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PermissionsHandler{logger: logger}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.listPermissions)
	r.Get("/check", h.Check)
}

type capabilityView struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type roleView struct {
	Role         Role          `json:"role"`
	Capabilities CapabilitySet `json:"capabilities"`
	Flags        Flags         `json:"flags"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	caps := make([]capabilityView, 0, len(AllCapabilities()))
	for _, c := range AllCapabilities() {
		caps = append(caps, capabilityView{Name: c.String(), Description: c.Description()})
	}
	roles := make([]roleView, 0, len(AllRoles()))
	for _, role := range AllRoles() {
		roles = append(roles, roleView{Role: role, Capabilities: CapabilitiesFor(role), Flags: FlagsFor(role)})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"capabilities": caps, "roles": roles})
}

type checkResponse struct {
	Capability       string  `json:"capability,omitempty"`
	Outcome          Outcome `json:"outcome"`
	HasCapability    bool    `json:"has_capability"`
	CanManageContent bool    `json:"can_manage_content"`
	CanDeleteContent bool    `json:"can_delete_content"`
	CanManageUsers   bool    `json:"can_manage_users"`
}

// Check answers the same questions the guards ask, for the current actor.
// The owner and target parameters are optional.
func (h *PermissionsHandler) Check(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())
	query := r.URL.Query()
	owner := strings.TrimSpace(query.Get("owner"))
	target := strings.TrimSpace(query.Get("target"))

	resp := checkResponse{
		CanManageContent: CanManageContent(actor, owner),
		CanDeleteContent: CanDeleteContent(actor, owner),
		CanManageUsers:   CanManageUsers(actor, target),
	}
	if raw := query.Get("capability"); raw != "" {
		c, err := ParseCapability(raw)
		if err != nil {
			h.logger.Debug("permission check with unknown capability", slog.String("capability", raw))
			httpx.Problem(w, http.StatusBadRequest, "Unknown Capability", err.Error())
			return
		}
		resp.Capability = c.String()
		resp.HasCapability = HasCapability(actor, c)
		resp.Outcome = Decide(actor, c, query.Get("fallback") == "true")
	} else if actor != nil {
		resp.Outcome = OutcomeAllowed
	}
	httpx.JSON(w, http.StatusOK, resp)
}
