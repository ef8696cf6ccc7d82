package poll

import (
	"time"

	"pollhub/internal/domain/user"
)

// projectPoll assembles a Response from already loaded state. It never
// touches storage. Choices keep the order they carry on the poll; a choice
// absent from counts has zero votes.
func projectPoll(p *Poll, counts map[int64]int64, creator *user.User, selected *int64, now time.Time) Response {
	choices := make([]ChoiceResponse, 0, len(p.Choices))
	var total int64
	for i := range p.Choices {
		c := &p.Choices[i]
		n := counts[c.ID]
		total += n
		choices = append(choices, ChoiceResponse{
			ID:        c.ID,
			Text:      c.Text,
			VoteCount: n,
		})
	}

	return Response{
		ID:                 p.ID,
		Question:           p.Question,
		Choices:            choices,
		CreationDateTime:   p.CreatedAt,
		ExpirationDateTime: p.ExpirationDateTime,
		Expired:            p.Expired(now),
		CreatedBy:          user.Summarize(creator),
		SelectedChoice:     selected,
		TotalVotes:         total,
	}
}
