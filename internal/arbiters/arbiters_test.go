package arbiters

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRecordDecisionAccumulates(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore())

	if err := svc.RecordDecision(ctx, "0xJudge", 200, 10*time.Second); err != nil {
		t.Fatalf("RecordDecision failed: %v", err)
	}
	if err := svc.RecordDecision(ctx, "0xJudge", 300, 30*time.Second); err != nil {
		t.Fatalf("RecordDecision failed: %v", err)
	}

	stats, err := svc.Get(ctx, "0xJudge")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stats.TotalArbitrated != 2 {
		t.Errorf("total arbitrated = %d, want 2", stats.TotalArbitrated)
	}
	if stats.TotalVolume != 500 {
		t.Errorf("total volume = %d, want 500", stats.TotalVolume)
	}
	if stats.AvgDecisionTime != 20 {
		t.Errorf("avg decision = %.1fs, want 20s", stats.AvgDecisionTime)
	}
	if stats.FastestDecision != 10 {
		t.Errorf("fastest decision = %.1fs, want 10s", stats.FastestDecision)
	}
	if stats.ReputationScore <= 0 {
		t.Errorf("reputation score = %f, want > 0", stats.ReputationScore)
	}
}

func TestGetUnknownArbiter(t *testing.T) {
	svc := NewService(NewMemoryStore())
	if _, err := svc.Get(context.Background(), "0xNobody"); !errors.Is(err, ErrArbiterNotFound) {
		t.Errorf("err = %v, want ErrArbiterNotFound", err)
	}
}

func TestLeaderboardOrdersByScore(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore())

	// Busy and fast beats occasional and slow
	for i := 0; i < 5; i++ {
		if err := svc.RecordDecision(ctx, "0xFast", 100, time.Minute); err != nil {
			t.Fatalf("RecordDecision failed: %v", err)
		}
	}
	if err := svc.RecordDecision(ctx, "0xSlow", 100, 48*time.Hour); err != nil {
		t.Fatalf("RecordDecision failed: %v", err)
	}

	board, err := svc.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	if len(board) != 2 {
		t.Fatalf("leaderboard size = %d, want 2", len(board))
	}
	if board[0].Address != "0xfast" {
		t.Errorf("top arbiter = %s, want 0xfast", board[0].Address)
	}
	if board[0].ReputationScore <= board[1].ReputationScore {
		t.Errorf("scores not descending: %f <= %f", board[0].ReputationScore, board[1].ReputationScore)
	}
}

func TestScoreDiscountsSlowDecisions(t *testing.T) {
	fast := &Stats{TotalArbitrated: 3, AvgDecisionTime: 60}
	slow := &Stats{TotalArbitrated: 3, AvgDecisionTime: (72 * time.Hour).Seconds()}

	if fast.Score() <= slow.Score() {
		t.Errorf("fast score %f should beat slow score %f", fast.Score(), slow.Score())
	}
	if (&Stats{}).Score() != 0 {
		t.Error("empty stats should score zero")
	}
}
