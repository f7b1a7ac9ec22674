package notifications

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memStore struct {
	mu    sync.Mutex
	rows  []*Notification
	fails int
	err   error
}

func (s *memStore) Create(ctx context.Context, n *Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails > 0 {
		s.fails--
		return false, s.err
	}
	for _, row := range s.rows {
		if row.EventID == n.EventID {
			return false, nil
		}
		if n.BidID != nil && row.BidID != nil && *row.BidID == *n.BidID &&
			row.Type == n.Type && row.UserID == n.UserID {
			return false, nil
		}
	}
	copied := *n
	s.rows = append(s.rows, &copied)
	return true, nil
}

func (s *memStore) find(userID string, id uuid.UUID) *Notification {
	for _, row := range s.rows {
		if row.ID == id && row.UserID == userID {
			return row
		}
	}
	return nil
}

func (s *memStore) MarkRead(ctx context.Context, userID string, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.find(userID, id)
	if row == nil {
		return ErrNotFound
	}
	if !row.IsRead {
		row.IsRead = true
		row.ReadAt = &at
	}
	return nil
}

func (s *memStore) MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.rows {
		if row.UserID == userID && !row.IsRead {
			row.IsRead = true
			row.ReadAt = &at
			n++
		}
	}
	return n, nil
}

func (s *memStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.rows {
		if row.UserID == userID && !row.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *memStore) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*Notification, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*Notification
	for _, row := range s.rows {
		if row.UserID != userID || (unreadOnly && row.IsRead) {
			continue
		}
		matched = append(matched, row)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	if offset >= total {
		return []*Notification{}, total, nil
	}
	return matched[offset:min(offset+limit, total)], total, nil
}

func (s *memStore) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, row := range s.rows {
		if row.ID == id && row.UserID == userID {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

type recordingSink struct {
	mu   sync.Mutex
	sent []*Notification
	err  error
}

func (s *recordingSink) Send(ctx context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return s.err
}

// steppingClock advances by one second on every call
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}
