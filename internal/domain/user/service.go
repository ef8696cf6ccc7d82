package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"pollhub/internal/platform/apperr"
)

// PollCounter and VoteCounter are the two aggregate queries the profile
// endpoint needs; the poll and vote repositories satisfy them.
type PollCounter interface {
	CountByCreator(ctx context.Context, userID string) (int64, error)
}

type VoteCounter interface {
	CountByUser(ctx context.Context, userID string) (int64, error)
}

type Service struct {
	repo  Repository
	polls PollCounter
	votes VoteCounter
}

func NewService(repo Repository, polls PollCounter, votes VoteCounter) *Service {
	return &Service{repo: repo, polls: polls, votes: votes}
}

type RegisterInput struct {
	FirstName string
	LastName  string
	Username  string
	Email     string
	Password  string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	taken, err := s.repo.ExistsByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	taken, err = s.repo.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: string(hash),
		Roles:        []string{RoleUser},
	}

	// The repository converts a losing race on the unique indexes back
	// into ErrUsernameTaken / ErrEmailTaken.
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	return u, nil
}

func (s *Service) Login(ctx context.Context, usernameOrEmail, password string) (*User, error) {
	u, err := s.repo.GetByUsernameOrEmail(ctx, usernameOrEmail)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

func (s *Service) Me(ctx context.Context, caller *Caller) (Summary, error) {
	u, err := s.repo.GetByID(ctx, caller.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Summary{}, apperr.ResourceNotFound("User", "id", caller.ID)
		}
		return Summary{}, err
	}
	return Summarize(u), nil
}

func (s *Service) UsernameAvailable(ctx context.Context, username string) (Availability, error) {
	exists, err := s.repo.ExistsByUsername(ctx, username)
	if err != nil {
		return Availability{}, err
	}
	return Availability{Available: !exists}, nil
}

func (s *Service) EmailAvailable(ctx context.Context, email string) (Availability, error) {
	exists, err := s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		return Availability{}, err
	}
	return Availability{Available: !exists}, nil
}

func (s *Service) Profile(ctx context.Context, username string) (Profile, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Profile{}, apperr.ResourceNotFound("User", "username", username)
		}
		return Profile{}, err
	}

	pollCount, err := s.polls.CountByCreator(ctx, u.ID)
	if err != nil {
		return Profile{}, err
	}
	voteCount, err := s.votes.CountByUser(ctx, u.ID)
	if err != nil {
		return Profile{}, err
	}

	return Profile{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		JoinedAt:  u.CreatedAt,
		PollCount: pollCount,
		VoteCount: voteCount,
	}, nil
}
