package forums

import (
	"context"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/sizang-hub/sizang-hub/internal/rbac"
)

// maxMentions caps the members one post can notify by handle.
const maxMentions = 10

var mentionPattern = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_@])@([\p{L}\p{N}_.]{2,40})`)

// MentionResolver maps @handles to member ids. Unknown handles are skipped.
type MentionResolver interface {
	ResolveHandles(ctx context.Context, handles []string) ([]string, error)
}

// Mentions returns the distinct lower-cased @handles in content, in order of
// appearance.
func Mentions(content string) []string {
	var out []string
	for _, m := range mentionPattern.FindAllStringSubmatch(content, -1) {
		handle := strings.ToLower(strings.TrimRight(m[1], "."))
		if len(handle) < 2 || slices.Contains(out, handle) {
			continue
		}
		out = append(out, handle)
		if len(out) == maxMentions {
			break
		}
	}
	return out
}

// notifyMentions tells the members named in content, except the author and
// anyone listed in skip.
func (s *Service) notifyMentions(ctx context.Context, actor *rbac.Actor, thread Thread, content string, skip ...string) {
	if s.mentions == nil {
		return
	}
	handles := Mentions(content)
	if len(handles) == 0 {
		return
	}
	ids, err := s.mentions.ResolveHandles(ctx, handles)
	if err != nil {
		s.logger.Warn("resolve mentions", slog.String("thread_id", thread.ID), slog.Any("error", err))
		return
	}
	targets := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == actor.ID || slices.Contains(skip, id) || slices.Contains(targets, id) {
			continue
		}
		targets = append(targets, id)
	}
	if len(targets) == 0 {
		return
	}
	if err := s.notifier.Mentioned(ctx, thread, actor.DisplayName, targets); err != nil {
		s.logger.Warn("notify mentions", slog.String("thread_id", thread.ID), slog.Any("error", err))
	}
}
