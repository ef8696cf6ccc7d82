package worker

import (
	"context"
	"log/slog"

	"pollhub/internal/metrics"
)

// VoteEvent is emitted after a vote is accepted. Delivery is best-effort:
// the handler drops the event when the channel is full.
type VoteEvent struct {
	PollID   int64
	ChoiceID int64
	UserID   string
}

// StatsWorker drains vote events off the request path, keeping the vote
// counter and the vote log out of handler latency.
type StatsWorker struct {
	ch  <-chan VoteEvent
	log *slog.Logger
}

func NewStatsWorker(ch <-chan VoteEvent) *StatsWorker {
	return &StatsWorker{ch: ch, log: slog.Default()}
}

func (w *StatsWorker) Run(ctx context.Context) {
	w.log.Info("stats worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info("stats worker stopped")
			return
		case ev := <-w.ch:
			metrics.IncVoteCast()
			w.log.Info("vote cast", "poll_id", ev.PollID, "choice_id", ev.ChoiceID)
		}
	}
}
