package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ivankudzin/anonrelay/internal/domain/model"
)

var ErrSubmissionNotFound = errors.New("submission not found")

type Repo interface {
	// Append stores the submission and returns its assigned id. Identifiers
	// are monotonically increasing and never reused.
	Append(ctx context.Context, senderID int64, senderHandle, text string, createdAt time.Time) (int64, error)
	FindByID(ctx context.Context, id int64) (model.Submission, bool, error)
}

// Service is the append-only ledger of relayed submissions. There is no
// update or delete: a disclosed message must match what was relayed.
type Service struct {
	repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{repo: repo}
}

func (s *Service) Append(ctx context.Context, senderID int64, senderHandle, text string, now time.Time) (model.Submission, error) {
	if senderID <= 0 {
		return model.Submission{}, fmt.Errorf("invalid sender id")
	}
	if s.repo == nil {
		return model.Submission{}, fmt.Errorf("ledger repo is nil")
	}

	text = strings.TrimSpace(text)
	createdAt := now.UTC()

	id, err := s.repo.Append(ctx, senderID, senderHandle, text, createdAt)
	if err != nil {
		return model.Submission{}, err
	}

	return model.Submission{
		ID:           id,
		SenderID:     senderID,
		SenderHandle: senderHandle,
		Text:         text,
		CreatedAt:    createdAt,
	}, nil
}

func (s *Service) Lookup(ctx context.Context, id int64) (model.Submission, error) {
	if id <= 0 {
		return model.Submission{}, ErrSubmissionNotFound
	}
	if s.repo == nil {
		return model.Submission{}, fmt.Errorf("ledger repo is nil")
	}

	submission, found, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return model.Submission{}, err
	}
	if !found {
		return model.Submission{}, ErrSubmissionNotFound
	}
	return submission, nil
}
