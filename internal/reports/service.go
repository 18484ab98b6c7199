package reports

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sizang-hub/sizang-hub/internal/ids"
	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
	"github.com/sizang-hub/sizang-hub/internal/shared"
)

// Notifier tells reporters that their report was handled.
type Notifier interface {
	ReportReviewed(ctx context.Context, r Report) error
}

// Service handles report business logic.
type Service struct {
	repo     RepositoryPort
	notifier Notifier
	audit    shared.Auditor
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, notifier Notifier, audit shared.Auditor, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAuditor{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, notifier: notifier, audit: audit, logger: logger, validate: validator.New()}
}

// Create files a report.
func (s *Service) Create(ctx context.Context, actor *rbac.Actor, input Input) (Report, error) {
	if actor == nil {
		return Report{}, httpx.ErrUnauthorized
	}
	if !rbac.HasCapability(actor, rbac.CapCreateContent) {
		return Report{}, fmt.Errorf("%w: reporting requires create_content", httpx.ErrForbidden)
	}
	input.Reason = strings.TrimSpace(input.Reason)
	if err := s.validate.Struct(input); err != nil {
		return Report{}, err
	}
	if input.Type == TargetUser && input.TargetID == actor.ID {
		return Report{}, fmt.Errorf("%w: cannot report yourself", httpx.ErrValidation)
	}
	return s.repo.Create(ctx, Report{
		ID:         ids.New(),
		Type:       input.Type,
		TargetID:   input.TargetID,
		ReporterID: actor.ID,
		Reason:     input.Reason,
		Status:     StatusPending,
	})
}

// List returns the moderation queue.
func (s *Service) List(ctx context.Context, actor *rbac.Actor, filter ListFilter) ([]Report, int, error) {
	if actor == nil {
		return nil, 0, httpx.ErrUnauthorized
	}
	if !rbac.HasCapability(actor, rbac.CapModerateContent) {
		return nil, 0, fmt.Errorf("%w: the report queue requires moderate_content", httpx.ErrForbidden)
	}
	return s.repo.List(ctx, filter)
}

// ListOwn returns the reports actor filed.
func (s *Service) ListOwn(ctx context.Context, actor *rbac.Actor, filter ListFilter) ([]Report, int, error) {
	if actor == nil {
		return nil, 0, httpx.ErrUnauthorized
	}
	filter.ReporterID = actor.ID
	return s.repo.List(ctx, filter)
}

// Get returns a report to a moderator or its reporter.
func (s *Service) Get(ctx context.Context, actor *rbac.Actor, id string) (Report, error) {
	if actor == nil {
		return Report{}, httpx.ErrUnauthorized
	}
	rep, err := s.repo.Get(ctx, id)
	if err != nil {
		return Report{}, err
	}
	if rep.ReporterID != actor.ID && !rbac.HasCapability(actor, rbac.CapModerateContent) {
		return Report{}, fmt.Errorf("%w: cannot view this report", httpx.ErrForbidden)
	}
	return rep, nil
}

// Review updates status or notes, notifying the reporter when the status
// changes.
func (s *Service) Review(ctx context.Context, actor *rbac.Actor, id string, input Review) (Report, error) {
	if actor == nil {
		return Report{}, httpx.ErrUnauthorized
	}
	if !rbac.HasCapability(actor, rbac.CapModerateContent) {
		return Report{}, fmt.Errorf("%w: reviewing reports requires moderate_content", httpx.ErrForbidden)
	}
	if err := s.validate.Struct(input); err != nil {
		return Report{}, err
	}
	rep, err := s.repo.Get(ctx, id)
	if err != nil {
		return Report{}, err
	}
	before := rep.Status
	if input.Status != nil {
		rep.Status = *input.Status
	}
	if input.Notes != nil {
		rep.Notes = strings.TrimSpace(*input.Notes)
	}
	updated, err := s.repo.Update(ctx, rep)
	if err != nil {
		return Report{}, err
	}
	if updated.Status == before {
		return updated, nil
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   "report.reviewed",
		Entity:   "report",
		EntityID: id,
		Meta:     map[string]any{"from": string(before), "to": string(updated.Status)},
	}); err != nil {
		s.logger.Warn("audit report review", slog.String("report_id", id), slog.Any("error", err))
	}
	if s.notifier != nil {
		if err := s.notifier.ReportReviewed(ctx, updated); err != nil {
			s.logger.Warn("notify report review", slog.String("report_id", id), slog.Any("error", err))
		}
	}
	return updated, nil
}

// Delete removes a report.
func (s *Service) Delete(ctx context.Context, actor *rbac.Actor, id string) error {
	if actor == nil {
		return httpx.ErrUnauthorized
	}
	if !rbac.HasCapability(actor, rbac.CapManageContent) {
		return fmt.Errorf("%w: deleting reports requires manage_content", httpx.ErrForbidden)
	}
	return s.repo.Delete(ctx, id)
}

// StatusCounts tallies reports per status.
func (s *Service) StatusCounts(ctx context.Context) (map[Status]int, error) {
	return s.repo.CountByStatus(ctx)
}
