package vote

import (
	"context"
	"errors"
	"time"

	"pollhub/internal/paging"
)

// ErrAlreadyVoted is the duplicate-vote signal. The Postgres repository
// derives it from the unique constraint on (user_id, poll_id), so a race
// between two votes by the same user resolves with exactly one success.
var ErrAlreadyVoted = errors.New("already voted in this poll")

type Vote struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	PollID    int64     `json:"pollId"`
	ChoiceID  int64     `json:"choiceId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChoiceVoteCount is one row of a grouped vote count.
type ChoiceVoteCount struct {
	ChoiceID  int64
	VoteCount int64
}

type Repository interface {
	// Create inserts the vote; ErrAlreadyVoted when the (user, poll)
	// uniqueness constraint rejects it.
	Create(ctx context.Context, v *Vote) error
	CountByPollGroupedByChoice(ctx context.Context, pollID int64) ([]ChoiceVoteCount, error)
	CountByPollsGroupedByChoice(ctx context.Context, pollIDs []int64) ([]ChoiceVoteCount, error)
	// GetByUserAndPoll returns (nil, nil) when the user has not voted.
	GetByUserAndPoll(ctx context.Context, userID string, pollID int64) (*Vote, error)
	GetByUserAndPolls(ctx context.Context, userID string, pollIDs []int64) ([]Vote, error)
	PageVotedPollIDs(ctx context.Context, userID string, p paging.Pageable) ([]int64, int64, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
}
