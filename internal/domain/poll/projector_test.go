package poll

import (
	"testing"
	"time"

	"pollhub/internal/domain/user"
)

func TestProjectPollCountsAndOrder(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &Poll{
		ID:                 7,
		Question:           "Tea or coffee?",
		ExpirationDateTime: now.Add(24 * time.Hour),
		Choices: []Choice{
			{ID: 11, PollID: 7, Text: "Tea"},
			{ID: 12, PollID: 7, Text: "Coffee"},
			{ID: 13, PollID: 7, Text: "Neither"},
		},
	}
	p.CreatedAt = now.Add(-time.Hour)

	creator := &user.User{ID: "u1", Username: "alice", FirstName: "Alice", LastName: "A"}
	counts := map[int64]int64{11: 3, 12: 1}

	selected := int64(12)
	resp := projectPoll(p, counts, creator, &selected, now)

	if resp.TotalVotes != 4 {
		t.Fatalf("totalVotes = %d, want 4", resp.TotalVotes)
	}
	if len(resp.Choices) != 3 {
		t.Fatalf("expected 3 choices, got %d", len(resp.Choices))
	}
	wantTexts := []string{"Tea", "Coffee", "Neither"}
	wantCounts := []int64{3, 1, 0}
	for i, c := range resp.Choices {
		if c.Text != wantTexts[i] || c.VoteCount != wantCounts[i] {
			t.Fatalf("choice %d = %+v, want %s/%d", i, c, wantTexts[i], wantCounts[i])
		}
	}
	if resp.SelectedChoice == nil || *resp.SelectedChoice != 12 {
		t.Fatalf("selectedChoice = %v, want 12", resp.SelectedChoice)
	}
	if resp.Expired {
		t.Fatalf("poll should not be expired yet")
	}
	if resp.CreatedBy.Username != "alice" {
		t.Fatalf("createdBy = %+v", resp.CreatedBy)
	}
}

func TestProjectPollExpirationBoundary(t *testing.T) {
	exp := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	p := &Poll{
		ID:                 1,
		Question:           "q",
		ExpirationDateTime: exp,
		Choices:            []Choice{{ID: 1, Text: "a"}, {ID: 2, Text: "b"}},
	}
	creator := &user.User{ID: "u1", Username: "alice"}

	before := projectPoll(p, nil, creator, nil, exp.Add(-time.Millisecond))
	if before.Expired {
		t.Fatalf("1ms before expiration must not be expired")
	}

	at := projectPoll(p, nil, creator, nil, exp)
	if !at.Expired {
		t.Fatalf("at the expiration instant the poll is expired")
	}
}

func TestProjectPollAnonymous(t *testing.T) {
	p := &Poll{
		ID:                 1,
		Question:           "q",
		ExpirationDateTime: time.Now().Add(time.Hour),
		Choices:            []Choice{{ID: 1, Text: "a"}, {ID: 2, Text: "b"}},
	}
	resp := projectPoll(p, nil, &user.User{ID: "u1"}, nil, time.Now())
	if resp.SelectedChoice != nil {
		t.Fatalf("anonymous caller must see selectedChoice == null")
	}
	if resp.TotalVotes != 0 {
		t.Fatalf("no counts means zero votes, got %d", resp.TotalVotes)
	}
}
