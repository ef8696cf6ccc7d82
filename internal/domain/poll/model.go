package poll

import (
	"context"
	"errors"
	"time"

	"pollhub/internal/paging"
)

const (
	MinChoices     = 2
	MaxChoices     = 6
	MaxQuestionLen = 140
	MaxChoiceLen   = 40
	MaxLengthDays  = 7
	MaxLengthHours = 23
)

var ErrNotFound = errors.New("poll not found")

// Audit carries the write-time bookkeeping shared by persisted entities.
// CreatedAt/UpdatedAt are populated by the store; CreatedBy is the
// authenticated caller at creation and never changes afterwards.
type Audit struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	CreatedBy string    `json:"createdBy"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
}

type Poll struct {
	ID                 int64     `json:"id"`
	Question           string    `json:"question"`
	Choices            []Choice  `json:"choices"`
	ExpirationDateTime time.Time `json:"expirationDateTime"`
	Audit
}

// Expired reports whether the poll no longer accepts votes. A vote at the
// exact expiration instant is rejected.
func (p *Poll) Expired(now time.Time) bool {
	return !now.Before(p.ExpirationDateTime)
}

func (p *Poll) HasChoice(choiceID int64) bool {
	for i := range p.Choices {
		if p.Choices[i].ID == choiceID {
			return true
		}
	}
	return false
}

type Choice struct {
	ID     int64  `json:"id"`
	PollID int64  `json:"pollId"`
	Text   string `json:"text"`
}

// Length is the requested poll duration.
type Length struct {
	Days  int `json:"days"`
	Hours int `json:"hours"`
}

type Repository interface {
	// Create persists the poll and its choices atomically and assigns ids.
	Create(ctx context.Context, p *Poll) error
	GetByID(ctx context.Context, id int64) (*Poll, error)
	// GetByIDs returns the polls for ids ordered by sort; implementations
	// accept at least createdAt descending.
	GetByIDs(ctx context.Context, ids []int64, sort paging.Sort) ([]Poll, error)
	PageAll(ctx context.Context, p paging.Pageable) ([]Poll, int64, error)
	PageByCreator(ctx context.Context, userID string, p paging.Pageable) ([]Poll, int64, error)
	CountByCreator(ctx context.Context, userID string) (int64, error)
}
