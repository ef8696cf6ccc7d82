package postgres

import (
	"context"
	"database/sql"
	"errors"

	"pollhub/internal/domain/vote"
	"pollhub/internal/paging"
)

type VoteRepo struct {
	db *sql.DB
}

func NewVoteRepo(db *sql.DB) *VoteRepo {
	return &VoteRepo{db: db}
}

func (r *VoteRepo) Create(ctx context.Context, v *vote.Vote) error {
	query := `
        INSERT INTO votes (user_id, poll_id, choice_id)
        VALUES ($1, $2, $3)
        RETURNING id, created_at
    `
	err := r.db.QueryRowContext(ctx, query, v.UserID, v.PollID, v.ChoiceID).
		Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		if uniqueViolation(err) != nil {
			return vote.ErrAlreadyVoted
		}
		return err
	}
	return nil
}

func (r *VoteRepo) CountByPollGroupedByChoice(ctx context.Context, pollID int64) ([]vote.ChoiceVoteCount, error) {
	return r.queryCounts(ctx, `
        SELECT choice_id, COUNT(*) FROM votes
        WHERE poll_id = $1 GROUP BY choice_id
    `, pollID)
}

func (r *VoteRepo) CountByPollsGroupedByChoice(ctx context.Context, pollIDs []int64) ([]vote.ChoiceVoteCount, error) {
	if len(pollIDs) == 0 {
		return nil, nil
	}
	return r.queryCounts(ctx, `
        SELECT choice_id, COUNT(*) FROM votes
        WHERE poll_id = ANY($1) GROUP BY choice_id
    `, pollIDs)
}

func (r *VoteRepo) queryCounts(ctx context.Context, query string, arg any) ([]vote.ChoiceVoteCount, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []vote.ChoiceVoteCount
	for rows.Next() {
		var c vote.ChoiceVoteCount
		if err := rows.Scan(&c.ChoiceID, &c.VoteCount); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (r *VoteRepo) GetByUserAndPoll(ctx context.Context, userID string, pollID int64) (*vote.Vote, error) {
	v := &vote.Vote{}
	err := r.db.QueryRowContext(ctx, `
        SELECT id, user_id, poll_id, choice_id, created_at
        FROM votes WHERE user_id = $1 AND poll_id = $2
    `, userID, pollID).Scan(&v.ID, &v.UserID, &v.PollID, &v.ChoiceID, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

func (r *VoteRepo) GetByUserAndPolls(ctx context.Context, userID string, pollIDs []int64) ([]vote.Vote, error) {
	if len(pollIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, user_id, poll_id, choice_id, created_at
        FROM votes WHERE user_id = $1 AND poll_id = ANY($2)
    `, userID, pollIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var votes []vote.Vote
	for rows.Next() {
		var v vote.Vote
		if err := rows.Scan(&v.ID, &v.UserID, &v.PollID, &v.ChoiceID, &v.CreatedAt); err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

func (r *VoteRepo) PageVotedPollIDs(ctx context.Context, userID string, pg paging.Pageable) ([]int64, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM votes WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, `
        SELECT poll_id FROM votes WHERE user_id = $1
        ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3
    `, userID, pg.Limit(), pg.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, 0, err
		}
		ids = append(ids, id)
	}
	return ids, total, rows.Err()
}

func (r *VoteRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM votes WHERE user_id = $1`, userID).Scan(&total)
	return total, err
}
