package sessions

import (
	"context"
	"fmt"

	"github.com/ivankudzin/anonrelay/internal/domain/enums"
	"github.com/ivankudzin/anonrelay/internal/domain/model"
)

type Store interface {
	Get(ctx context.Context, senderID int64) (model.Session, bool, error)
	Put(ctx context.Context, session model.Session) error
	Delete(ctx context.Context, senderID int64) error
}

// Manager tracks each sender's open conversation flow. One flow per sender:
// opening a new flow silently replaces whatever was in progress.
type Manager struct {
	store Store
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Current returns the sender's session, an idle one if none is stored.
func (m *Manager) Current(ctx context.Context, senderID int64) (model.Session, error) {
	if senderID <= 0 {
		return model.Session{}, fmt.Errorf("invalid sender id")
	}
	if m.store == nil {
		return model.Session{}, fmt.Errorf("session store is nil")
	}

	session, found, err := m.store.Get(ctx, senderID)
	if err != nil {
		return model.Session{}, err
	}
	if !found {
		return model.Session{SenderID: senderID, State: enums.SessionIdle}, nil
	}
	return session, nil
}

// Open starts a fresh flow in the given state, discarding accumulated data.
func (m *Manager) Open(ctx context.Context, senderID int64, state enums.SessionState) error {
	if senderID <= 0 {
		return fmt.Errorf("invalid sender id")
	}
	if m.store == nil {
		return fmt.Errorf("session store is nil")
	}

	return m.store.Put(ctx, model.Session{
		SenderID: senderID,
		State:    state,
		Data:     map[string]string{},
	})
}

// Advance moves the open flow to the next state, merging extra values into
// the transient data carried forward.
func (m *Manager) Advance(ctx context.Context, senderID int64, state enums.SessionState, extra map[string]string) error {
	session, err := m.Current(ctx, senderID)
	if err != nil {
		return err
	}

	if session.Data == nil {
		session.Data = map[string]string{}
	}
	for k, v := range extra {
		session.Data[k] = v
	}
	session.State = state

	return m.store.Put(ctx, session)
}

// Clear completes or abandons the sender's flow.
func (m *Manager) Clear(ctx context.Context, senderID int64) error {
	if senderID <= 0 {
		return fmt.Errorf("invalid sender id")
	}
	if m.store == nil {
		return fmt.Errorf("session store is nil")
	}
	return m.store.Delete(ctx, senderID)
}
