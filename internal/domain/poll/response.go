package poll

import (
	"time"

	"pollhub/internal/domain/user"
)

// Response is the read model returned by every poll-reading endpoint.
type Response struct {
	ID                 int64            `json:"id"`
	Question           string           `json:"question"`
	Choices            []ChoiceResponse `json:"choices"`
	CreationDateTime   time.Time        `json:"creationDateTime"`
	ExpirationDateTime time.Time        `json:"expirationDateTime"`
	Expired            bool             `json:"expired"`
	CreatedBy          user.Summary     `json:"createdBy"`
	SelectedChoice     *int64           `json:"selectedChoice"`
	TotalVotes         int64            `json:"totalVotes"`
}

type ChoiceResponse struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	VoteCount int64  `json:"voteCount"`
}
