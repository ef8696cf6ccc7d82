package poll

import (
	"context"

	"pollhub/internal/domain/user"
)

// CallerVotes holds the caller's own choice per poll. A nil *CallerVotes
// means the request was anonymous, which is distinct from an authenticated
// caller who simply has not voted in any of the polls.
type CallerVotes struct {
	votes map[int64]int64
}

// Selected returns the caller's chosen choice id for pollID, or nil when
// anonymous or not voted.
func (cv *CallerVotes) Selected(pollID int64) *int64 {
	if cv == nil {
		return nil
	}
	if choiceID, ok := cv.votes[pollID]; ok {
		return &choiceID
	}
	return nil
}

// choiceVoteCounts runs the single grouped query over the given poll ids.
// Choices with zero votes are absent from the map.
func (s *Service) choiceVoteCounts(ctx context.Context, pollIDs []int64) (map[int64]int64, error) {
	rows, err := s.votes.CountByPollsGroupedByChoice(ctx, pollIDs)
	if err != nil {
		return nil, err
	}
	counts := make(map[int64]int64, len(rows))
	for _, row := range rows {
		counts[row.ChoiceID] = row.VoteCount
	}
	return counts, nil
}

// callerVotes batch-loads the caller's votes across pollIDs, or returns nil
// for an anonymous caller.
func (s *Service) callerVotes(ctx context.Context, caller *user.Caller, pollIDs []int64) (*CallerVotes, error) {
	if caller == nil {
		return nil, nil
	}
	userVotes, err := s.votes.GetByUserAndPolls(ctx, caller.ID, pollIDs)
	if err != nil {
		return nil, err
	}
	votes := make(map[int64]int64, len(userVotes))
	for _, v := range userVotes {
		votes[v.PollID] = v.ChoiceID
	}
	return &CallerVotes{votes: votes}, nil
}
