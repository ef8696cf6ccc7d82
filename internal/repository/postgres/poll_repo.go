package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"pollhub/internal/domain/poll"
	"pollhub/internal/paging"
)

type PollRepo struct {
	db *sql.DB
}

func NewPollRepo(db *sql.DB) *PollRepo {
	return &PollRepo{db: db}
}

const pollColumns = `id, question, expiration_date_time, created_by, updated_by, created_at, updated_at`

func (r *PollRepo) Create(ctx context.Context, p *poll.Poll) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	queryPoll := `
        INSERT INTO polls (question, expiration_date_time, created_by, updated_by)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at
    `
	err = tx.QueryRowContext(ctx, queryPoll,
		p.Question, p.ExpirationDateTime, p.CreatedBy, p.UpdatedBy,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return err
	}

	queryChoice := `
        INSERT INTO choices (poll_id, text)
        VALUES ($1, $2)
        RETURNING id
    `
	for i := range p.Choices {
		p.Choices[i].PollID = p.ID
		if err := tx.QueryRowContext(ctx, queryChoice, p.ID, p.Choices[i].Text).
			Scan(&p.Choices[i].ID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PollRepo) GetByID(ctx context.Context, id int64) (*poll.Poll, error) {
	p := &poll.Poll{}
	err := r.db.QueryRowContext(ctx, `
        SELECT `+pollColumns+` FROM polls WHERE id = $1
    `, id).Scan(
		&p.ID, &p.Question, &p.ExpirationDateTime,
		&p.CreatedBy, &p.UpdatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, poll.ErrNotFound
		}
		return nil, err
	}

	if err := r.attachChoices(ctx, []*poll.Poll{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PollRepo) GetByIDs(ctx context.Context, ids []int64, sort paging.Sort) ([]poll.Poll, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + pollColumns + ` FROM polls WHERE id = ANY($1) ` + orderClause(sort)
	return r.queryPolls(ctx, query, ids)
}

func (r *PollRepo) PageAll(ctx context.Context, pg paging.Pageable) ([]poll.Poll, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM polls`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + pollColumns + ` FROM polls ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`
	polls, err := r.queryPolls(ctx, query, pg.Limit(), pg.Offset())
	if err != nil {
		return nil, 0, err
	}
	return polls, total, nil
}

func (r *PollRepo) PageByCreator(ctx context.Context, userID string, pg paging.Pageable) ([]poll.Poll, int64, error) {
	total, err := r.CountByCreator(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + pollColumns + ` FROM polls WHERE created_by = $1
        ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	polls, err := r.queryPolls(ctx, query, userID, pg.Limit(), pg.Offset())
	if err != nil {
		return nil, 0, err
	}
	return polls, total, nil
}

func (r *PollRepo) CountByCreator(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM polls WHERE created_by = $1`, userID).Scan(&total)
	return total, err
}

func (r *PollRepo) queryPolls(ctx context.Context, query string, args ...any) ([]poll.Poll, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var polls []poll.Poll
	for rows.Next() {
		var p poll.Poll
		if err := rows.Scan(&p.ID, &p.Question, &p.ExpirationDateTime,
			&p.CreatedBy, &p.UpdatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		polls = append(polls, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs := make([]*poll.Poll, len(polls))
	for i := range polls {
		refs[i] = &polls[i]
	}
	if err := r.attachChoices(ctx, refs); err != nil {
		return nil, err
	}
	return polls, nil
}

// attachChoices loads the choices of all given polls in one query and
// distributes them in insertion (id) order.
func (r *PollRepo) attachChoices(ctx context.Context, polls []*poll.Poll) error {
	if len(polls) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(polls))
	byID := make(map[int64]*poll.Poll, len(polls))
	for _, p := range polls {
		ids = append(ids, p.ID)
		byID[p.ID] = p
	}

	rows, err := r.db.QueryContext(ctx, `
        SELECT id, poll_id, text FROM choices
        WHERE poll_id = ANY($1) ORDER BY poll_id, id
    `, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var c poll.Choice
		if err := rows.Scan(&c.ID, &c.PollID, &c.Text); err != nil {
			return err
		}
		if p, ok := byID[c.PollID]; ok {
			p.Choices = append(p.Choices, c)
		}
	}
	return rows.Err()
}

// sortableFields whitelists the sort fields exposed through the API.
var sortableFields = map[string]string{
	"createdAt": "created_at",
	"id":        "id",
}

func orderClause(sort paging.Sort) string {
	var parts []string
	for _, o := range sort {
		col, ok := sortableFields[o.Field]
		if !ok {
			continue
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
	}
	if len(parts) == 0 {
		return `ORDER BY created_at DESC, id DESC`
	}
	return `ORDER BY ` + strings.Join(parts, ", ")
}
