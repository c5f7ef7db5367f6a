package repository

import (
	"github.com/google/uuid"

	"github.com/adpulse/go-expiry-service/internal/domain"
	"github.com/adpulse/go-expiry-service/internal/shared/logger"
	"github.com/adpulse/go-expiry-service/internal/store"
)

const queueFile = "state/queue.json"

// QueueRepository manages the persisted delivery queue and its global pause
// flag. The queue is a staging list: items are enqueued by the cadence sweep
// and viewed/cancelled through the API; consumption is a separate concern.
type QueueRepository struct {
	store *store.Store
	log   *logger.Logger
}

// NewQueueRepository creates a new repository
func NewQueueRepository(s *store.Store, log *logger.Logger) *QueueRepository {
	return &QueueRepository{store: s, log: log}
}

// State returns the whole queue document.
func (r *QueueRepository) State() domain.QueueState {
	var state domain.QueueState
	r.store.Read(queueFile, &state)
	if state.Items == nil {
		state.Items = []domain.QueueItem{}
	}
	return state
}

// Paused reports the global pause flag.
func (r *QueueRepository) Paused() bool {
	return r.State().Paused
}

// Enqueue appends one delivery task, assigning an id when absent. Tasks
// already queued for the same profile, recipient and offset are not
// duplicated.
func (r *QueueRepository) Enqueue(item domain.QueueItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.Status == "" {
		item.Status = domain.QueueItemStatusPending
	}
	return store.Mutate(r.store, queueFile, func(state domain.QueueState) (domain.QueueState, error) {
		for _, existing := range state.Items {
			if existing.ProfileID == item.ProfileID && existing.Recipient == item.Recipient && existing.Offset == item.Offset {
				return state, nil
			}
		}
		state.Items = append(state.Items, item)
		return state, nil
	})
}

// Cancel removes exactly one item; a missing id is a no-op.
func (r *QueueRepository) Cancel(id string) error {
	return store.Mutate(r.store, queueFile, func(state domain.QueueState) (domain.QueueState, error) {
		for i, item := range state.Items {
			if item.ID == id {
				state.Items = append(state.Items[:i], state.Items[i+1:]...)
				break
			}
		}
		return state, nil
	})
}

// Clear empties the queue. The pause flag is left untouched.
func (r *QueueRepository) Clear() error {
	return store.Mutate(r.store, queueFile, func(state domain.QueueState) (domain.QueueState, error) {
		state.Items = []domain.QueueItem{}
		return state, nil
	})
}

// TogglePause flips the global pause flag and returns the new value.
func (r *QueueRepository) TogglePause() (bool, error) {
	var paused bool
	err := store.Mutate(r.store, queueFile, func(state domain.QueueState) (domain.QueueState, error) {
		state.Paused = !state.Paused
		paused = state.Paused
		return state, nil
	})
	if err != nil {
		return false, err
	}
	r.log.Info("Delivery queue pause toggled", "paused", paused)
	return paused, nil
}
