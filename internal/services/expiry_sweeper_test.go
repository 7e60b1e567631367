package services

import (
	"context"
	"testing"
	"time"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
)

func TestExpirySweeper_SweepOnce(t *testing.T) {
	env := newTestEnv(sampleDefinition())
	ctx := context.Background()
	svc := env.manager.Attempt()

	early1, _ := svc.Start(ctx, "u1", testSeriesID, testTestID)
	early2, _ := svc.Start(ctx, "u2", testSeriesID, testTestID)
	env.clock.Advance(20 * time.Minute)
	late, _ := svc.Start(ctx, "u3", testSeriesID, testTestID)

	env.clock.Set(testStart.Add(31 * time.Minute))

	sweeper := env.manager.Sweeper()
	n, err := sweeper.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("SweepOnce() error = %v", err)
	}
	if n != 2 {
		t.Errorf("finalized %d attempts, want 2", n)
	}

	for _, id := range []uint{early1.ID, early2.ID} {
		a, _ := env.repo.Attempt().GetByID(ctx, nil, id)
		if a.Status != models.AttemptSubmitted || !a.AutoSubmitted {
			t.Errorf("attempt %d = %+v", id, a)
		}
	}
	if a, _ := env.repo.Attempt().GetByID(ctx, nil, late.ID); a.Status != models.AttemptInProgress {
		t.Errorf("attempt still in its window was finalized: %+v", a)
	}

	if n, err := sweeper.SweepOnce(ctx); err != nil || n != 0 {
		t.Errorf("second SweepOnce() = %d, %v", n, err)
	}
}

func TestExpirySweeper_SkipsPastUnscorableAttempts(t *testing.T) {
	env := newTestEnv(sampleDefinition())
	ctx := context.Background()
	svc := env.manager.Attempt()

	broken := sampleDefinition()
	broken.TestID = testTestID + 1
	broken.Sections[0].Questions[0].CorrectOption = nil
	env.repo.AddDefinition(broken)

	for _, user := range []string{"u1", "u2", "u3"} {
		if _, err := svc.Start(ctx, user, testSeriesID, broken.TestID); err != nil {
			t.Fatalf("start broken test for %s: %v", user, err)
		}
	}
	scorable, err := svc.Start(ctx, "u4", testSeriesID, testTestID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	env.clock.Advance(time.Hour)

	sweeper := NewExpirySweeper(env.repo, svc, env.clock, testLogger(), 0, 0)
	sweeper.batch = 2

	for round := 1; round <= 2; round++ {
		n, err := sweeper.SweepOnce(ctx)
		if err != nil {
			t.Fatalf("sweep %d: %v", round, err)
		}
		want := 0
		if round == 1 {
			want = 1
		}
		if n != want {
			t.Errorf("sweep %d finalized %d attempts, want %d", round, n, want)
		}
	}

	if a, _ := env.repo.Attempt().GetByID(ctx, nil, scorable.ID); a.Status != models.AttemptSubmitted {
		t.Errorf("scorable attempt behind unscorable ones = %+v, want submitted", a)
	}
}

func TestExpirySweeper_StartStop(t *testing.T) {
	env := newTestEnv(sampleDefinition())
	ctx := context.Background()

	attempt, _ := env.manager.Attempt().Start(ctx, "u1", testSeriesID, testTestID)
	env.clock.Advance(time.Hour)

	sweeper := NewExpirySweeper(env.repo, env.manager.Attempt(), env.clock, testLogger(), 5*time.Millisecond, 0)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		a, _ := env.repo.Attempt().GetByID(ctx, nil, attempt.ID)
		if a.Status == models.AttemptSubmitted {
			sweeper.Stop()
			sweeper.Stop()
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("sweeper did not finalize the expired attempt")
}

func TestExpirySweeper_DisabledWithoutInterval(t *testing.T) {
	env := newTestEnv(sampleDefinition())

	sweeper := NewExpirySweeper(env.repo, env.manager.Attempt(), env.clock, testLogger(), 0, 0)
	sweeper.Start(context.Background())
	sweeper.Stop()
}
