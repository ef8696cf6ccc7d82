package poll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pollhub/internal/domain/user"
	"pollhub/internal/domain/vote"
	"pollhub/internal/paging"
	"pollhub/internal/platform/apperr"
	"pollhub/internal/platform/clock"
)

var frozenNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type memoryUserDir struct {
	mu     sync.Mutex
	users  map[string]*user.User
	byName map[string]string
}

func newMemoryUserDir() *memoryUserDir {
	return &memoryUserDir{
		users:  make(map[string]*user.User),
		byName: make(map[string]string),
	}
}

func (d *memoryUserDir) seed(u *user.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	copyUser := *u
	d.users[u.ID] = &copyUser
	d.byName[u.Username] = u.ID
}

func (d *memoryUserDir) GetByID(ctx context.Context, id string) (*user.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	copyUser := *u
	return &copyUser, nil
}

func (d *memoryUserDir) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	d.mu.Lock()
	id, ok := d.byName[username]
	d.mu.Unlock()
	if !ok {
		return nil, user.ErrNotFound
	}
	return d.GetByID(ctx, id)
}

func (d *memoryUserDir) GetByIDs(ctx context.Context, ids []string) ([]user.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var res []user.User
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			res = append(res, *u)
		}
	}
	return res, nil
}

type memoryPollRepo struct {
	mu           sync.Mutex
	polls        map[int64]*Poll
	order        []int64
	nextPollID   int64
	nextChoiceID int64
	clk          clock.Clock
}

func newMemoryPollRepo(clk clock.Clock) *memoryPollRepo {
	return &memoryPollRepo{
		polls:        make(map[int64]*Poll),
		nextPollID:   1,
		nextChoiceID: 1,
		clk:          clk,
	}
}

func (r *memoryPollRepo) Create(ctx context.Context, p *Poll) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.nextPollID
	r.nextPollID++
	now := r.clk.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	for i := range p.Choices {
		p.Choices[i].ID = r.nextChoiceID
		r.nextChoiceID++
		p.Choices[i].PollID = p.ID
	}
	clone := clonePoll(p)
	r.polls[p.ID] = clone
	r.order = append(r.order, p.ID)
	return nil
}

func (r *memoryPollRepo) GetByID(ctx context.Context, id int64) (*Poll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.polls[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePoll(p), nil
}

// newestFirst returns ids in reverse creation order, matching
// created_at DESC, id DESC in the real store.
func (r *memoryPollRepo) newestFirst() []int64 {
	ids := make([]int64, len(r.order))
	for i, id := range r.order {
		ids[len(r.order)-1-i] = id
	}
	return ids
}

func (r *memoryPollRepo) GetByIDs(ctx context.Context, ids []int64, sort paging.Sort) ([]Poll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var res []Poll
	for _, id := range r.newestFirst() {
		if want[id] {
			res = append(res, *clonePoll(r.polls[id]))
		}
	}
	return res, nil
}

func (r *memoryPollRepo) PageAll(ctx context.Context, pg paging.Pageable) ([]Poll, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.window(r.newestFirst(), pg)
}

func (r *memoryPollRepo) PageByCreator(ctx context.Context, userID string, pg paging.Pageable) ([]Poll, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for _, id := range r.newestFirst() {
		if r.polls[id].CreatedBy == userID {
			ids = append(ids, id)
		}
	}
	return r.window(ids, pg)
}

func (r *memoryPollRepo) window(ids []int64, pg paging.Pageable) ([]Poll, int64, error) {
	total := int64(len(ids))
	start := pg.Offset()
	if start > len(ids) {
		start = len(ids)
	}
	end := start + pg.Limit()
	if end > len(ids) {
		end = len(ids)
	}
	var res []Poll
	for _, id := range ids[start:end] {
		res = append(res, *clonePoll(r.polls[id]))
	}
	return res, total, nil
}

func (r *memoryPollRepo) CountByCreator(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.polls {
		if p.CreatedBy == userID {
			n++
		}
	}
	return n, nil
}

func clonePoll(p *Poll) *Poll {
	clone := *p
	clone.Choices = make([]Choice, len(p.Choices))
	copy(clone.Choices, p.Choices)
	return &clone
}

type memoryVoteRepo struct {
	mu     sync.Mutex
	votes  []vote.Vote
	nextID int64
	clk    clock.Clock
}

func newMemoryVoteRepo(clk clock.Clock) *memoryVoteRepo {
	return &memoryVoteRepo{nextID: 1, clk: clk}
}

func (r *memoryVoteRepo) Create(ctx context.Context, v *vote.Vote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.votes {
		if existing.UserID == v.UserID && existing.PollID == v.PollID {
			return vote.ErrAlreadyVoted
		}
	}
	v.ID = r.nextID
	r.nextID++
	v.CreatedAt = r.clk.Now()
	r.votes = append(r.votes, *v)
	return nil
}

func (r *memoryVoteRepo) CountByPollGroupedByChoice(ctx context.Context, pollID int64) ([]vote.ChoiceVoteCount, error) {
	return r.CountByPollsGroupedByChoice(ctx, []int64{pollID})
}

func (r *memoryVoteRepo) CountByPollsGroupedByChoice(ctx context.Context, pollIDs []int64) ([]vote.ChoiceVoteCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[int64]bool, len(pollIDs))
	for _, id := range pollIDs {
		want[id] = true
	}
	counts := make(map[int64]int64)
	for _, v := range r.votes {
		if want[v.PollID] {
			counts[v.ChoiceID]++
		}
	}
	var res []vote.ChoiceVoteCount
	for choiceID, n := range counts {
		res = append(res, vote.ChoiceVoteCount{ChoiceID: choiceID, VoteCount: n})
	}
	return res, nil
}

func (r *memoryVoteRepo) GetByUserAndPoll(ctx context.Context, userID string, pollID int64) (*vote.Vote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.votes {
		if v.UserID == userID && v.PollID == pollID {
			copyVote := v
			return &copyVote, nil
		}
	}
	return nil, nil
}

func (r *memoryVoteRepo) GetByUserAndPolls(ctx context.Context, userID string, pollIDs []int64) ([]vote.Vote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[int64]bool, len(pollIDs))
	for _, id := range pollIDs {
		want[id] = true
	}
	var res []vote.Vote
	for _, v := range r.votes {
		if v.UserID == userID && want[v.PollID] {
			res = append(res, v)
		}
	}
	return res, nil
}

func (r *memoryVoteRepo) PageVotedPollIDs(ctx context.Context, userID string, pg paging.Pageable) ([]int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for i := len(r.votes) - 1; i >= 0; i-- {
		if r.votes[i].UserID == userID {
			ids = append(ids, r.votes[i].PollID)
		}
	}
	total := int64(len(ids))
	start := pg.Offset()
	if start > len(ids) {
		start = len(ids)
	}
	end := start + pg.Limit()
	if end > len(ids) {
		end = len(ids)
	}
	return ids[start:end], total, nil
}

func (r *memoryVoteRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, v := range r.votes {
		if v.UserID == userID {
			n++
		}
	}
	return n, nil
}

func setupService(t *testing.T) (*Service, *memoryUserDir, *memoryPollRepo, *memoryVoteRepo, *clock.Fixed) {
	t.Helper()
	clk := clock.NewFixed(frozenNow)
	users := newMemoryUserDir()
	polls := newMemoryPollRepo(clk)
	votes := newMemoryVoteRepo(clk)
	svc := NewService(polls, votes, users, clk)
	return svc, users, polls, votes, clk
}

func seedUser(d *memoryUserDir, id, username string) *user.Caller {
	d.seed(&user.User{
		ID:        id,
		Username:  username,
		FirstName: "First",
		LastName:  "Last",
		Roles:     []string{user.RoleUser},
	})
	return &user.Caller{ID: id, Username: username, Roles: []string{user.RoleUser}}
}

func mustCreatePoll(t *testing.T, svc *Service, caller *user.Caller, question string, choices []string) *Poll {
	t.Helper()
	p, err := svc.CreatePoll(context.Background(), caller, CreateInput{
		Question: question,
		Choices:  choices,
		Length:   Length{Days: 1},
	})
	if err != nil {
		t.Fatalf("create poll: %v", err)
	}
	return p
}

func statusOf(err error) int {
	return apperr.FromError(err).StatusCode()
}

func TestCreatePollSetsExpiration(t *testing.T) {
	svc, users, _, _, _ := setupService(t)
	alice := seedUser(users, "u-alice", "alice")

	p, err := svc.CreatePoll(context.Background(), alice, CreateInput{
		Question: "Tea or coffee?",
		Choices:  []string{"Tea", "Coffee"},
		Length:   Length{Days: 1, Hours: 0},
	})
	if err != nil {
		t.Fatalf("create poll: %v", err)
	}

	wantExp := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if !p.ExpirationDateTime.Equal(wantExp) {
		t.Fatalf("expiration = %v, want %v", p.ExpirationDateTime, wantExp)
	}
	if p.CreatedBy != "u-alice" {
		t.Fatalf("createdBy = %q", p.CreatedBy)
	}
	if len(p.Choices) != 2 || p.Choices[0].ID == 0 {
		t.Fatalf("choices not persisted: %+v", p.Choices)
	}
}

func TestCreatePollValidation(t *testing.T) {
	svc, users, _, _, _ := setupService(t)
	alice := seedUser(users, "u-alice", "alice")
	ctx := context.Background()

	long := make([]byte, MaxQuestionLen+1)
	for i := range long {
		long[i] = 'q'
	}

	cases := []struct {
		name string
		in   CreateInput
	}{
		{"empty question", CreateInput{Choices: []string{"a", "b"}, Length: Length{Days: 1}}},
		{"question too long", CreateInput{Question: string(long), Choices: []string{"a", "b"}, Length: Length{Days: 1}}},
		{"one choice", CreateInput{Question: "q", Choices: []string{"a"}, Length: Length{Days: 1}}},
		{"seven choices", CreateInput{Question: "q", Choices: []string{"a", "b", "c", "d", "e", "f", "g"}, Length: Length{Days: 1}}},
		{"empty choice text", CreateInput{Question: "q", Choices: []string{"a", " "}, Length: Length{Days: 1}}},
		{"zero length", CreateInput{Question: "q", Choices: []string{"a", "b"}}},
		{"days out of range", CreateInput{Question: "q", Choices: []string{"a", "b"}, Length: Length{Days: 8}}},
		{"hours out of range", CreateInput{Question: "q", Choices: []string{"a", "b"}, Length: Length{Hours: 24}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreatePoll(ctx, alice, tc.in)
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if statusOf(err) != 400 {
				t.Fatalf("expected 400, got %d (%v)", statusOf(err), err)
			}
		})
	}
}

func TestCastVoteFlow(t *testing.T) {
	svc, users, _, _, clk := setupService(t)
	alice := seedUser(users, "u-alice", "alice")
	bob := seedUser(users, "u-bob", "bob")
	ctx := context.Background()

	p := mustCreatePoll(t, svc, alice, "Tea or coffee?", []string{"Tea", "Coffee"})
	teaID := p.Choices[0].ID

	resp, err := svc.CastVote(ctx, bob, p.ID, teaID)
	if err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	if resp.SelectedChoice == nil || *resp.SelectedChoice != teaID {
		t.Fatalf("selectedChoice = %v, want %d", resp.SelectedChoice, teaID)
	}
	if resp.TotalVotes != 1 {
		t.Fatalf("totalVotes = %d, want 1", resp.TotalVotes)
	}

	// Same user again, any choice.
	_, err = svc.CastVote(ctx, bob, p.ID, p.Choices[1].ID)
	if err == nil || statusOf(err) != 400 {
		t.Fatalf("expected 400 for duplicate vote, got %v", err)
	}
	if apperr.FromError(err).Message != "Already voted in this poll" {
		t.Fatalf("unexpected message: %q", apperr.FromError(err).Message)
	}

	// Choice not belonging to the poll.
	other := mustCreatePoll(t, svc, alice, "Other?", []string{"x", "y"})
	carol := seedUser(users, "u-carol", "carol")
	_, err = svc.CastVote(ctx, carol, p.ID, other.Choices[0].ID)
	if err == nil || statusOf(err) != 404 {
		t.Fatalf("expected 404 for foreign choice, got %v", err)
	}

	// One second past the deadline.
	clk.Set(time.Date(2024, 1, 2, 0, 0, 1, 0, time.UTC))
	_, err = svc.CastVote(ctx, carol, p.ID, teaID)
	if err == nil || statusOf(err) != 400 {
		t.Fatalf("expected 400 for expired poll, got %v", err)
	}
	if apperr.FromError(err).Message != "Poll has already expired" {
		t.Fatalf("unexpected message: %q", apperr.FromError(err).Message)
	}
}

func TestCastVoteAtExactExpirationFails(t *testing.T) {
	svc, users, _, _, clk := setupService(t)
	alice := seedUser(users, "u-alice", "alice")
	bob := seedUser(users, "u-bob", "bob")

	p := mustCreatePoll(t, svc, alice, "q?", []string{"a", "b"})

	clk.Set(p.ExpirationDateTime.Add(-time.Millisecond))
	if _, err := svc.CastVote(context.Background(), bob, p.ID, p.Choices[0].ID); err != nil {
		t.Fatalf("vote 1ms before expiration must succeed: %v", err)
	}

	carol := seedUser(users, "u-carol", "carol")
	clk.Set(p.ExpirationDateTime)
	if _, err := svc.CastVote(context.Background(), carol, p.ID, p.Choices[0].ID); err == nil {
		t.Fatalf("vote at the expiration instant must fail")
	}
}

func TestListPollsPaginationAndOrder(t *testing.T) {
	svc, users, _, _, _ := setupService(t)
	alice := seedUser(users, "u-alice", "alice")
	ctx := context.Background()

	mustCreatePoll(t, svc, alice, "first", []string{"a", "b"})
	second := mustCreatePoll(t, svc, alice, "second", []string{"a", "b"})

	pg, _ := paging.NewPageable(0, 1)
	page, err := svc.ListPolls(ctx, nil, pg)
	if err != nil {
		t.Fatalf("list polls: %v", err)
	}

	if len(page.Content) != 1 || page.TotalElements != 2 || page.TotalPages != 2 || page.Last {
		t.Fatalf("unexpected page metadata: %+v", page)
	}
	if page.Content[0].ID != second.ID {
		t.Fatalf("newest poll must come first, got id %d", page.Content[0].ID)
	}
	if page.Content[0].SelectedChoice != nil {
		t.Fatalf("anonymous caller must not see a selected choice")
	}

	pg2, _ := paging.NewPageable(1, 1)
	page2, err := svc.ListPolls(ctx, nil, pg2)
	if err != nil {
		t.Fatalf("list polls page 1: %v", err)
	}
	if !page2.Last || len(page2.Content) != 1 {
		t.Fatalf("page 1 must be last: %+v", page2)
	}
}

func TestListPollsShowsCallerVote(t *testing.T) {
	svc, users, _, _, _ := setupService(t)
	alice := seedUser(users, "u-alice", "alice")
	bob := seedUser(users, "u-bob", "bob")
	ctx := context.Background()

	p := mustCreatePoll(t, svc, alice, "q?", []string{"a", "b"})
	if _, err := svc.CastVote(ctx, bob, p.ID, p.Choices[1].ID); err != nil {
		t.Fatalf("cast vote: %v", err)
	}

	pg, _ := paging.NewPageable(0, 30)
	page, err := svc.ListPolls(ctx, bob, pg)
	if err != nil {
		t.Fatalf("list polls: %v", err)
	}
	sel := page.Content[0].SelectedChoice
	if sel == nil || *sel != p.Choices[1].ID {
		t.Fatalf("selectedChoice = %v, want %d", sel, p.Choices[1].ID)
	}
}

func TestListPollsEmptyPageKeepsMetadata(t *testing.T) {
	svc, _, _, _, _ := setupService(t)

	pg, _ := paging.NewPageable(3, 10)
	page, err := svc.ListPolls(context.Background(), nil, pg)
	if err != nil {
		t.Fatalf("list polls: %v", err)
	}
	if len(page.Content) != 0 || page.Number != 3 || page.Size != 10 || page.TotalElements != 0 {
		t.Fatalf("unexpected empty page: %+v", page)
	}
}

func TestListPollsCreatedByUnknownUser(t *testing.T) {
	svc, _, _, _, _ := setupService(t)
	pg, _ := paging.NewPageable(0, 30)
	_, err := svc.ListPollsCreatedBy(context.Background(), "ghost", nil, pg)
	if err == nil || statusOf(err) != 404 {
		t.Fatalf("expected 404 for unknown user, got %v", err)
	}
}

func TestListPollsVotedByOrderAndMetadata(t *testing.T) {
	svc, users, _, _, _ := setupService(t)
	alice := seedUser(users, "u-alice", "alice")
	bob := seedUser(users, "u-bob", "bob")
	ctx := context.Background()

	first := mustCreatePoll(t, svc, alice, "first", []string{"a", "b"})
	second := mustCreatePoll(t, svc, alice, "second", []string{"a", "b"})

	// Bob votes on the older poll last; output order still follows poll
	// creation time, not vote time.
	if _, err := svc.CastVote(ctx, bob, second.ID, second.Choices[0].ID); err != nil {
		t.Fatalf("vote second: %v", err)
	}
	if _, err := svc.CastVote(ctx, bob, first.ID, first.Choices[0].ID); err != nil {
		t.Fatalf("vote first: %v", err)
	}

	pg, _ := paging.NewPageable(0, 30)
	page, err := svc.ListPollsVotedBy(ctx, "bob", bob, pg)
	if err != nil {
		t.Fatalf("list voted by: %v", err)
	}
	if page.TotalElements != 2 || len(page.Content) != 2 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Content[0].ID != second.ID || page.Content[1].ID != first.ID {
		t.Fatalf("expected newest poll first, got %d then %d", page.Content[0].ID, page.Content[1].ID)
	}
	for _, resp := range page.Content {
		if resp.SelectedChoice == nil {
			t.Fatalf("voter must see their selection on poll %d", resp.ID)
		}
	}
}

func TestGetPoll(t *testing.T) {
	svc, users, _, _, _ := setupService(t)
	alice := seedUser(users, "u-alice", "alice")
	bob := seedUser(users, "u-bob", "bob")
	ctx := context.Background()

	p := mustCreatePoll(t, svc, alice, "Tea or coffee?", []string{"Tea", "Coffee"})

	resp, err := svc.GetPoll(ctx, p.ID, nil)
	if err != nil {
		t.Fatalf("get poll: %v", err)
	}
	if resp.TotalVotes != 0 || resp.SelectedChoice != nil {
		t.Fatalf("fresh poll: %+v", resp)
	}
	if resp.Question != "Tea or coffee?" {
		t.Fatalf("question = %q", resp.Question)
	}

	if _, err := svc.CastVote(ctx, bob, p.ID, p.Choices[0].ID); err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	resp, err = svc.GetPoll(ctx, p.ID, bob)
	if err != nil {
		t.Fatalf("get poll as voter: %v", err)
	}
	if resp.SelectedChoice == nil || *resp.SelectedChoice != p.Choices[0].ID {
		t.Fatalf("voter must see own choice: %+v", resp)
	}

	if _, err := svc.GetPoll(ctx, 9999, nil); err == nil || statusOf(err) != 404 {
		t.Fatalf("expected 404 for unknown poll, got %v", err)
	}
}

func TestGetPollDanglingCreator(t *testing.T) {
	svc, users, polls, _, clk := setupService(t)
	alice := seedUser(users, "u-alice", "alice")
	p := mustCreatePoll(t, svc, alice, "q?", []string{"a", "b"})

	// Simulate a dangling created_by reference.
	broken := newMemoryUserDir()
	svc2 := NewService(polls, newMemoryVoteRepo(clk), broken, clk)

	_, err := svc2.GetPoll(context.Background(), p.ID, nil)
	if err == nil || statusOf(err) != 404 {
		t.Fatalf("dangling creator must surface as not found, got %v", err)
	}
}

func TestConcurrentDuplicateVotes(t *testing.T) {
	svc, users, _, _, _ := setupService(t)
	alice := seedUser(users, "u-alice", "alice")
	bob := seedUser(users, "u-bob", "bob")
	p := mustCreatePoll(t, svc, alice, "q?", []string{"a", "b"})

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CastVote(context.Background(), bob, p.ID, p.Choices[0].ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, vote.ErrAlreadyVoted) || statusOf(err) == 400:
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || dup != n-1 {
		t.Fatalf("expected exactly one accepted vote, got ok=%d dup=%d", ok, dup)
	}
}
