package health

import (
	"context"
	"testing"
)

func TestCheckAllEmpty(t *testing.T) {
	r := NewRegistry()
	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Error("empty registry should be healthy")
	}
	if len(statuses) != 0 {
		t.Errorf("expected no statuses, got %d", len(statuses))
	}
}

func TestCheckAllAggregates(t *testing.T) {
	r := NewRegistry()
	r.Register("database", func(ctx context.Context) Status {
		return Status{Name: "database", Healthy: true}
	})
	r.Register("escrow", func(ctx context.Context) Status {
		return Status{Name: "escrow", Healthy: false, Detail: "sweep stalled"}
	})

	healthy, statuses := r.CheckAll(context.Background())
	if healthy {
		t.Error("one failing checker should make the aggregate unhealthy")
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[1].Detail != "sweep stalled" {
		t.Errorf("unexpected detail: %q", statuses[1].Detail)
	}
}
