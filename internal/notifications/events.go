package notifications

import (
	"context"
	"fmt"

	"github.com/sizang-hub/sizang-hub/internal/forums"
	"github.com/sizang-hub/sizang-hub/internal/groups"
	"github.com/sizang-hub/sizang-hub/internal/reports"
	"github.com/sizang-hub/sizang-hub/internal/resources"
)

// Events turns activity in forums, groups, resources and reports into
// notifications for the affected members.
type Events struct {
	sink Sink
}

// NewEvents builds Events delivering to sink.
func NewEvents(sink Sink) *Events {
	return &Events{sink: sink}
}

var (
	_ forums.Notifier    = (*Events)(nil)
	_ groups.Notifier    = (*Events)(nil)
	_ resources.Notifier = (*Events)(nil)
	_ reports.Notifier   = (*Events)(nil)
)

// ReplyPosted notifies the thread author.
func (e *Events) ReplyPosted(ctx context.Context, thread forums.Thread, reply forums.Reply) error {
	return e.sink.Deliver(ctx, Notification{
		UserID:      thread.AuthorID,
		Type:        TypeComment,
		Content:     fmt.Sprintf("%s replied to %q", displayName(reply.AuthorName), thread.Title),
		RelatedID:   thread.ID,
		RelatedType: "thread",
	})
}

// ContentLiked notifies the owner of a liked thread or reply.
func (e *Events) ContentLiked(ctx context.Context, ownerID, likerID string, target forums.LikeTarget, targetID string) error {
	return e.sink.Deliver(ctx, Notification{
		UserID:      ownerID,
		Type:        TypeLike,
		Content:     fmt.Sprintf("Someone liked your %s", target),
		RelatedID:   targetID,
		RelatedType: string(target),
	})
}

// Mentioned notifies each member named with an @handle.
func (e *Events) Mentioned(ctx context.Context, thread forums.Thread, authorName string, userIDs []string) error {
	items := make([]Notification, 0, len(userIDs))
	for _, id := range userIDs {
		items = append(items, Notification{
			UserID:      id,
			Type:        TypeMention,
			Content:     fmt.Sprintf("%s mentioned you in %q", displayName(authorName), thread.Title),
			RelatedID:   thread.ID,
			RelatedType: "thread",
		})
	}
	return e.sink.Deliver(ctx, items...)
}

// Invited notifies the invited member.
func (e *Events) Invited(ctx context.Context, g groups.Group, inviterName, userID string) error {
	return e.sink.Deliver(ctx, Notification{
		UserID:      userID,
		Type:        TypeGroupInvite,
		Content:     fmt.Sprintf("%s invited you to join %q", displayName(inviterName), g.Name),
		RelatedID:   g.ID,
		RelatedType: "group",
	})
}

// Posted notifies the group's members of a new post.
func (e *Events) Posted(ctx context.Context, g groups.Group, post groups.Post, memberIDs []string) error {
	items := make([]Notification, 0, len(memberIDs))
	for _, id := range memberIDs {
		items = append(items, Notification{
			UserID:      id,
			Type:        TypeGroupPost,
			Content:     fmt.Sprintf("%s posted in %q", displayName(post.AuthorName), g.Name),
			RelatedID:   g.ID,
			RelatedType: "group",
		})
	}
	return e.sink.Deliver(ctx, items...)
}

// Commented notifies the author of a group post.
func (e *Events) Commented(ctx context.Context, g groups.Group, post groups.Post, c groups.Comment) error {
	return e.sink.Deliver(ctx, Notification{
		UserID:      post.AuthorID,
		Type:        TypeComment,
		Content:     fmt.Sprintf("%s commented on your post in %q", displayName(c.AuthorName), g.Name),
		RelatedID:   post.ID,
		RelatedType: "group_post",
	})
}

// ResourceApproved notifies the resource author.
func (e *Events) ResourceApproved(ctx context.Context, res resources.Resource, approverID string) error {
	return e.sink.Deliver(ctx, Notification{
		UserID:      res.AuthorID,
		Type:        TypeResource,
		Content:     fmt.Sprintf("Your resource %q was approved", res.Title),
		RelatedID:   res.ID,
		RelatedType: "resource",
	})
}

// ReportReviewed notifies the reporter of the new status.
func (e *Events) ReportReviewed(ctx context.Context, r reports.Report) error {
	return e.sink.Deliver(ctx, Notification{
		UserID:      r.ReporterID,
		Type:        TypeReport,
		Content:     fmt.Sprintf("Your report on a %s is now %s", r.Type, r.Status),
		RelatedID:   r.ID,
		RelatedType: "report",
	})
}

func displayName(name string) string {
	if name == "" {
		return "Someone"
	}
	return name
}
