package forums

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
)

type memoryRepo struct {
	mu         sync.Mutex
	categories map[string]Category
	threads    map[string]Thread
	replies    map[string]Reply
	likes      map[string]bool
	clock      time.Time
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		categories: map[string]Category{"general": {ID: "general", Name: "General", Slug: "general", IsActive: true}},
		threads:    map[string]Thread{},
		replies:    map[string]Reply{},
		likes:      map[string]bool{},
		clock:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memoryRepo) tick() time.Time {
	m.clock = m.clock.Add(time.Minute)
	return m.clock
}

func (m *memoryRepo) ListCategories(ctx context.Context) ([]Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Category
	for _, c := range m.categories {
		if !c.IsActive {
			continue
		}
		for _, t := range m.threads {
			if t.CategoryID == c.ID {
				c.ThreadCount++
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder || out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryRepo) GetCategory(ctx context.Context, id string) (Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories {
		if c.ID == id || c.Slug == id {
			return c, nil
		}
	}
	return Category{}, fmt.Errorf("%w: category %s", httpx.ErrNotFound, id)
}

func (m *memoryRepo) UpsertCategory(ctx context.Context, c Category) (Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.categories {
		if existing.Slug == c.Slug {
			c.ID = id
		}
	}
	c.IsActive = true
	m.categories[c.ID] = c
	return c, nil
}

func (m *memoryRepo) DeleteCategory(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok {
		return httpx.ErrNotFound
	}
	c.IsActive = false
	m.categories[id] = c
	return nil
}

func (m *memoryRepo) ListThreads(ctx context.Context, f ThreadFilter) ([]Thread, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Thread
	for _, t := range m.threads {
		if f.CategoryID != "" && t.CategoryID != f.CategoryID {
			continue
		}
		if f.Language != "" && t.Language != f.Language {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(t.Title+" "+t.Content), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsPinned != out[j].IsPinned {
			return out[i].IsPinned
		}
		return out[i].LastReplyAt.After(out[j].LastReplyAt)
	})
	total := len(out)
	if f.Offset < len(out) {
		out = out[f.Offset:]
	} else {
		out = nil
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (m *memoryRepo) GetThread(ctx context.Context, id string) (Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[id]
	if !ok {
		return Thread{}, fmt.Errorf("%w: thread %s", httpx.ErrNotFound, id)
	}
	return t, nil
}

func (m *memoryRepo) IncrementViews(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.threads[id]
	t.ViewCount++
	m.threads[id] = t
	return nil
}

func (m *memoryRepo) CreateThread(ctx context.Context, t Thread) (Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.tick()
	t.CreatedAt, t.UpdatedAt, t.LastReplyAt = now, now, now
	m.threads[t.ID] = t
	return t, nil
}

func (m *memoryRepo) UpdateThread(ctx context.Context, t Thread) (Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.UpdatedAt = m.tick()
	m.threads[t.ID] = t
	return t, nil
}

func (m *memoryRepo) SetThreadState(ctx context.Context, id string, pinned, locked *bool) (Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[id]
	if !ok {
		return Thread{}, httpx.ErrNotFound
	}
	if pinned != nil {
		t.IsPinned = *pinned
	}
	if locked != nil {
		t.IsLocked = *locked
	}
	m.threads[id] = t
	return t, nil
}

func (m *memoryRepo) DeleteThread(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.threads, id)
	for rid, r := range m.replies {
		if r.ThreadID == id {
			delete(m.replies, rid)
		}
	}
	return nil
}

func (m *memoryRepo) ListReplies(ctx context.Context, threadID string, limit, offset int) ([]Reply, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Reply
	for _, r := range m.replies {
		if r.ThreadID == threadID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, len(out), nil
}

func (m *memoryRepo) GetReply(ctx context.Context, id string) (Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.replies[id]
	if !ok {
		return Reply{}, fmt.Errorf("%w: reply %s", httpx.ErrNotFound, id)
	}
	return r, nil
}

func (m *memoryRepo) CreateReply(ctx context.Context, r Reply) (Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.tick()
	r.CreatedAt, r.UpdatedAt = now, now
	m.replies[r.ID] = r
	t := m.threads[r.ThreadID]
	t.ReplyCount++
	t.LastReplyAt = now
	m.threads[r.ThreadID] = t
	return r, nil
}

func (m *memoryRepo) UpdateReply(ctx context.Context, r Reply) (Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.IsEdited = true
	r.UpdatedAt = m.tick()
	m.replies[r.ID] = r
	return r, nil
}

func (m *memoryRepo) DeleteReply(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.replies[id]
	if !ok {
		return httpx.ErrNotFound
	}
	removed := 0
	for _, rid := range m.subtree(id) {
		delete(m.replies, rid)
		removed++
	}
	t := m.threads[r.ThreadID]
	t.ReplyCount -= removed
	m.threads[r.ThreadID] = t
	return nil
}

func (m *memoryRepo) subtree(id string) []string {
	out := []string{id}
	for i := 0; i < len(out); i++ {
		for _, r := range m.replies {
			if r.ParentID != nil && *r.ParentID == out[i] {
				out = append(out, r.ID)
			}
		}
	}
	return out
}

func (m *memoryRepo) CountForeignReplies(ctx context.Context, id, authorID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rid := range m.subtree(id)[1:] {
		if m.replies[rid].AuthorID != authorID {
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) ToggleLike(ctx context.Context, target LikeTarget, targetID, userID string) (bool, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := string(target) + "|" + targetID + "|" + userID
	liked := !m.likes[key]
	if liked {
		m.likes[key] = true
	} else {
		delete(m.likes, key)
	}
	count := 0
	prefix := string(target) + "|" + targetID + "|"
	for k := range m.likes {
		if strings.HasPrefix(k, prefix) {
			count++
		}
	}
	return liked, count, nil
}

func (m *memoryRepo) CountThreads(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.threads), nil
}

func (m *memoryRepo) CountReplies(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.replies), nil
}

type notification struct {
	kind    string
	ownerID string
	from    string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) ReplyPosted(ctx context.Context, thread Thread, reply Reply) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{kind: "reply", ownerID: thread.AuthorID, from: reply.AuthorID})
	return nil
}

func (n *recordingNotifier) ContentLiked(ctx context.Context, ownerID, likerID string, target LikeTarget, targetID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{kind: "like", ownerID: ownerID, from: likerID})
	return nil
}

func (n *recordingNotifier) Mentioned(ctx context.Context, thread Thread, authorName string, userIDs []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, id := range userIDs {
		n.sent = append(n.sent, notification{kind: "mention", ownerID: id, from: authorName})
	}
	return nil
}

type handleDirectory map[string]string

func (d handleDirectory) ResolveHandles(ctx context.Context, handles []string) ([]string, error) {
	var out []string
	for _, h := range handles {
		if id, ok := d[h]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}
