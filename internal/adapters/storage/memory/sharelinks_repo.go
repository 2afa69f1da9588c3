package memory

import (
	"context"
	"sort"
	"sync"

	"ehr-access/internal/domain/sharelinks"
)

type ShareLinksRepo struct {
	mu          sync.RWMutex
	rows        map[string]sharelinks.ShareLink
	redemptions []sharelinks.Redemption
}

func NewShareLinksRepo() *ShareLinksRepo {
	return &ShareLinksRepo{rows: make(map[string]sharelinks.ShareLink)}
}

func (r *ShareLinksRepo) Create(_ context.Context, l sharelinks.ShareLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rows[l.ID] = l
	return nil
}

func (r *ShareLinksRepo) GetByID(_ context.Context, id string) (sharelinks.ShareLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.rows[id]
	if !ok {
		return sharelinks.ShareLink{}, sharelinks.ErrRepoNotFound
	}
	return l, nil
}

func (r *ShareLinksRepo) ListByIssuer(_ context.Context, issuerID string) ([]sharelinks.ShareLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]sharelinks.ShareLink, 0)
	for _, l := range r.rows {
		if l.IssuedBy == issuerID {
			out = append(out, l)
		}
	}
	sortByIssuedAt(out)
	return out, nil
}

// IncrementAccess: el contador se incrementa bajo el lock, así dos
// redenciones concurrentes ven valores distintos.
func (r *ShareLinksRepo) IncrementAccess(_ context.Context, id string, entry sharelinks.Redemption) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.rows[id]
	if !ok {
		return 0, sharelinks.ErrRepoNotFound
	}
	l.AccessCount++
	r.rows[id] = l
	r.redemptions = append(r.redemptions, entry)
	return l.AccessCount, nil
}

func (r *ShareLinksRepo) ListRedeemedBy(_ context.Context, userID string) ([]sharelinks.ShareLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	out := make([]sharelinks.ShareLink, 0)
	for _, entry := range r.redemptions {
		if entry.RedeemedBy != userID || seen[entry.LinkID] {
			continue
		}
		seen[entry.LinkID] = true
		if l, ok := r.rows[entry.LinkID]; ok {
			out = append(out, l)
		}
	}
	sortByIssuedAt(out)
	return out, nil
}

func sortByIssuedAt(links []sharelinks.ShareLink) {
	sort.Slice(links, func(i, j int) bool {
		return links[i].IssuedAt.After(links[j].IssuedAt)
	})
}
