package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pollhub/internal/domain/user"
	"pollhub/internal/domain/vote"
	"pollhub/internal/paging"
	"pollhub/internal/platform/apperr"
	"pollhub/internal/platform/clock"
)

// UserDirectory is the slice of the user store the poll service needs.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetByUsername(ctx context.Context, username string) (*user.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]user.User, error)
}

type Service struct {
	polls Repository
	votes vote.Repository
	users UserDirectory
	clock clock.Clock
	log   *slog.Logger
}

func NewService(polls Repository, votes vote.Repository, users UserDirectory, clk clock.Clock) *Service {
	return &Service{
		polls: polls,
		votes: votes,
		users: users,
		clock: clk,
		log:   slog.Default(),
	}
}

type CreateInput struct {
	Question string
	Choices  []string
	Length   Length
}

func (s *Service) CreatePoll(ctx context.Context, caller *user.Caller, in CreateInput) (*Poll, error) {
	if err := validateCreateInput(in); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	expiration := now.
		Add(time.Duration(in.Length.Days) * 24 * time.Hour).
		Add(time.Duration(in.Length.Hours) * time.Hour)

	p := &Poll{
		Question:           strings.TrimSpace(in.Question),
		ExpirationDateTime: expiration,
	}
	p.CreatedBy = caller.ID
	p.UpdatedBy = caller.ID
	for _, text := range in.Choices {
		p.Choices = append(p.Choices, Choice{Text: strings.TrimSpace(text)})
	}

	if err := s.polls.Create(ctx, p); err != nil {
		return nil, err
	}

	s.log.Info("poll created", "poll_id", p.ID, "creator", caller.ID)
	return p, nil
}

func validateCreateInput(in CreateInput) error {
	question := strings.TrimSpace(in.Question)
	if question == "" || len(question) > MaxQuestionLen {
		return apperr.BadRequest("invalid_question",
			fmt.Sprintf("question must be 1..%d characters", MaxQuestionLen), nil)
	}
	if len(in.Choices) < MinChoices || len(in.Choices) > MaxChoices {
		return apperr.BadRequest("invalid_choices",
			fmt.Sprintf("poll must have %d..%d choices", MinChoices, MaxChoices), nil)
	}
	for _, text := range in.Choices {
		text = strings.TrimSpace(text)
		if text == "" || len(text) > MaxChoiceLen {
			return apperr.BadRequest("invalid_choices",
				fmt.Sprintf("choice text must be 1..%d characters", MaxChoiceLen), nil)
		}
	}
	if in.Length.Days < 0 || in.Length.Days > MaxLengthDays {
		return apperr.BadRequest("invalid_length",
			fmt.Sprintf("poll length days must be 0..%d", MaxLengthDays), nil)
	}
	if in.Length.Hours < 0 || in.Length.Hours > MaxLengthHours {
		return apperr.BadRequest("invalid_length",
			fmt.Sprintf("poll length hours must be 0..%d", MaxLengthHours), nil)
	}
	if in.Length.Days == 0 && in.Length.Hours == 0 {
		return apperr.BadRequest("invalid_length", "poll length must be greater than zero", nil)
	}
	return nil
}

// ListPolls returns all polls, newest first.
func (s *Service) ListPolls(ctx context.Context, caller *user.Caller, pg paging.Pageable) (paging.Page[Response], error) {
	polls, total, err := s.polls.PageAll(ctx, pg)
	if err != nil {
		return paging.Page[Response]{}, err
	}
	if len(polls) == 0 {
		return paging.NewPage([]Response{}, pg, total), nil
	}

	pollIDs := collectIDs(polls)
	counts, err := s.choiceVoteCounts(ctx, pollIDs)
	if err != nil {
		return paging.Page[Response]{}, err
	}
	callerVotes, err := s.callerVotes(ctx, caller, pollIDs)
	if err != nil {
		return paging.Page[Response]{}, err
	}
	creators, err := s.creatorsOf(ctx, polls)
	if err != nil {
		return paging.Page[Response]{}, err
	}

	responses, err := s.projectAll(polls, counts, creators, callerVotes)
	if err != nil {
		return paging.Page[Response]{}, err
	}
	return paging.NewPage(responses, pg, total), nil
}

// ListPollsCreatedBy returns the polls created by username, newest first.
func (s *Service) ListPollsCreatedBy(ctx context.Context, username string, caller *user.Caller, pg paging.Pageable) (paging.Page[Response], error) {
	creator, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return paging.Page[Response]{}, apperr.ResourceNotFound("User", "username", username)
		}
		return paging.Page[Response]{}, err
	}

	polls, total, err := s.polls.PageByCreator(ctx, creator.ID, pg)
	if err != nil {
		return paging.Page[Response]{}, err
	}
	if len(polls) == 0 {
		return paging.NewPage([]Response{}, pg, total), nil
	}

	pollIDs := collectIDs(polls)
	counts, err := s.choiceVoteCounts(ctx, pollIDs)
	if err != nil {
		return paging.Page[Response]{}, err
	}
	callerVotes, err := s.callerVotes(ctx, caller, pollIDs)
	if err != nil {
		return paging.Page[Response]{}, err
	}

	now := s.clock.Now()
	responses := make([]Response, 0, len(polls))
	for i := range polls {
		p := &polls[i]
		responses = append(responses, projectPoll(p, counts, creator, callerVotes.Selected(p.ID), now))
	}
	return paging.NewPage(responses, pg, total), nil
}

// ListPollsVotedBy returns the polls username has voted in. The page window
// is taken over the user's votes; the output order comes from the poll
// fetch, newest poll first.
func (s *Service) ListPollsVotedBy(ctx context.Context, username string, caller *user.Caller, pg paging.Pageable) (paging.Page[Response], error) {
	voter, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return paging.Page[Response]{}, apperr.ResourceNotFound("User", "username", username)
		}
		return paging.Page[Response]{}, err
	}

	pollIDs, total, err := s.votes.PageVotedPollIDs(ctx, voter.ID, pg)
	if err != nil {
		return paging.Page[Response]{}, err
	}
	if len(pollIDs) == 0 {
		return paging.NewPage([]Response{}, pg, total), nil
	}

	// One vote per user per poll means the id page cannot repeat ids.
	// A repeat is an integrity fault, not something to deduplicate.
	seen := make(map[int64]struct{}, len(pollIDs))
	for _, id := range pollIDs {
		if _, dup := seen[id]; dup {
			return paging.Page[Response]{}, apperr.Internal("integrity_fault",
				"duplicate poll id in voted-poll page", fmt.Errorf("poll %d repeated for user %s", id, voter.ID))
		}
		seen[id] = struct{}{}
	}

	polls, err := s.polls.GetByIDs(ctx, pollIDs, paging.ByCreatedAtDesc)
	if err != nil {
		return paging.Page[Response]{}, err
	}

	counts, err := s.choiceVoteCounts(ctx, pollIDs)
	if err != nil {
		return paging.Page[Response]{}, err
	}
	callerVotes, err := s.callerVotes(ctx, caller, pollIDs)
	if err != nil {
		return paging.Page[Response]{}, err
	}
	creators, err := s.creatorsOf(ctx, polls)
	if err != nil {
		return paging.Page[Response]{}, err
	}

	responses, err := s.projectAll(polls, counts, creators, callerVotes)
	if err != nil {
		return paging.Page[Response]{}, err
	}
	return paging.NewPage(responses, pg, total), nil
}

// GetPoll returns a single poll projection.
func (s *Service) GetPoll(ctx context.Context, pollID int64, caller *user.Caller) (Response, error) {
	p, err := s.polls.GetByID(ctx, pollID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Response{}, apperr.ResourceNotFound("Poll", "id", pollID)
		}
		return Response{}, err
	}

	rows, err := s.votes.CountByPollGroupedByChoice(ctx, pollID)
	if err != nil {
		return Response{}, err
	}
	counts := make(map[int64]int64, len(rows))
	for _, row := range rows {
		counts[row.ChoiceID] = row.VoteCount
	}

	creator, err := s.users.GetByID(ctx, p.CreatedBy)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// Dangling created_by is an integrity fault surfaced as not found.
			return Response{}, apperr.ResourceNotFound("User", "id", p.CreatedBy)
		}
		return Response{}, err
	}

	var selected *int64
	if caller != nil {
		v, err := s.votes.GetByUserAndPoll(ctx, caller.ID, pollID)
		if err != nil {
			return Response{}, err
		}
		if v != nil {
			selected = &v.ChoiceID
		}
	}

	return projectPoll(p, counts, creator, selected, s.clock.Now()), nil
}

// CastVote records the caller's vote and returns the updated projection.
// Expiration is checked before the insert; the one-vote invariant itself is
// carried entirely by the store's uniqueness constraint.
func (s *Service) CastVote(ctx context.Context, caller *user.Caller, pollID, choiceID int64) (Response, error) {
	p, err := s.polls.GetByID(ctx, pollID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Response{}, apperr.ResourceNotFound("Poll", "id", pollID)
		}
		return Response{}, err
	}

	if p.Expired(s.clock.Now()) {
		return Response{}, apperr.BadRequest("poll_expired", "Poll has already expired", nil)
	}

	if !p.HasChoice(choiceID) {
		return Response{}, apperr.ResourceNotFound("Choice", "id", choiceID)
	}

	v := &vote.Vote{
		UserID:   caller.ID,
		PollID:   pollID,
		ChoiceID: choiceID,
	}
	if err := s.votes.Create(ctx, v); err != nil {
		if errors.Is(err, vote.ErrAlreadyVoted) {
			s.log.Info("duplicate vote rejected", "user_id", caller.ID, "poll_id", pollID)
			return Response{}, apperr.BadRequest("already_voted", "Already voted in this poll", err)
		}
		return Response{}, err
	}

	rows, err := s.votes.CountByPollGroupedByChoice(ctx, pollID)
	if err != nil {
		return Response{}, err
	}
	counts := make(map[int64]int64, len(rows))
	for _, row := range rows {
		counts[row.ChoiceID] = row.VoteCount
	}

	creator, err := s.users.GetByID(ctx, p.CreatedBy)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return Response{}, apperr.ResourceNotFound("User", "id", p.CreatedBy)
		}
		return Response{}, err
	}

	return projectPoll(p, counts, creator, &v.ChoiceID, s.clock.Now()), nil
}

// creatorsOf batch-loads the distinct creators of the given polls. Only ids
// present on these polls are queried.
func (s *Service) creatorsOf(ctx context.Context, polls []Poll) (map[string]*user.User, error) {
	var ids []string
	seen := make(map[string]struct{})
	for i := range polls {
		id := polls[i].CreatedBy
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	creators, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*user.User, len(creators))
	for i := range creators {
		byID[creators[i].ID] = &creators[i]
	}
	return byID, nil
}

func (s *Service) projectAll(polls []Poll, counts map[int64]int64, creators map[string]*user.User, callerVotes *CallerVotes) ([]Response, error) {
	now := s.clock.Now()
	responses := make([]Response, 0, len(polls))
	for i := range polls {
		p := &polls[i]
		creator, ok := creators[p.CreatedBy]
		if !ok {
			return nil, apperr.Internal("integrity_fault", "poll creator missing",
				fmt.Errorf("poll %d references unknown user %s", p.ID, p.CreatedBy))
		}
		responses = append(responses, projectPoll(p, counts, creator, callerVotes.Selected(p.ID), now))
	}
	return responses, nil
}

func collectIDs(polls []Poll) []int64 {
	ids := make([]int64, 0, len(polls))
	for i := range polls {
		ids = append(ids, polls[i].ID)
	}
	return ids
}
