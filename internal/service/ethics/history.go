package ethics

import (
	"sync"

	"github.com/google/uuid"

	"github.com/autocura/governance-core/internal/domain/ethics"
	domainerrors "github.com/autocura/governance-core/internal/domain/errors"
)

// historyEntry pairs a verification result with the action it judged,
// so explanations can be rebuilt without re-evaluating anything.
type historyEntry struct {
	action *ethics.ProposedAction
	result *ethics.VerificationResult
}

// history is the in-memory, append-only verification log. It is capped:
// once limit entries exist, the oldest is evicted per append, and
// explaining an evicted verification returns a not-found error.
type history struct {
	mu      sync.RWMutex
	limit   int
	entries map[uuid.UUID]*historyEntry
	order   []uuid.UUID
}

const defaultHistoryLimit = 10000

func newHistory(limit int) *history {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &history{
		limit:   limit,
		entries: make(map[uuid.UUID]*historyEntry),
	}
}

func (h *history) append(action *ethics.ProposedAction, result *ethics.VerificationResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.order) >= h.limit {
		oldest := h.order[0]
		h.order = h.order[1:]
		delete(h.entries, oldest)
	}

	h.entries[result.ID] = &historyEntry{action: action, result: result}
	h.order = append(h.order, result.ID)
}

func (h *history) get(id uuid.UUID) (*historyEntry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entry, ok := h.entries[id]
	if !ok {
		return nil, domainerrors.ErrVerificationNotFound
	}
	return entry, nil
}

func (h *history) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.order)
}
