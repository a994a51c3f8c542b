package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"

	"github.com/odysseycup/admin-gate/internal/core/port"
	"github.com/odysseycup/admin-gate/internal/repository"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func newTestOTPRepository(t *testing.T, now time.Time) (*OTPRepository, *miniredis.Miniredis) {
	t.Helper()

	client, server := newTestRedis(t)
	repo := NewOTPRepository(client, "gate:otp")
	repo.WithClock(func() time.Time { return now })
	return repo, server
}

func TestOTPRepository_IssueAndPeek(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo, server := newTestOTPRepository(t, now)
	ctx := context.Background()

	record, remaining, err := repo.Issue(ctx, "Admin@Example.com", "123456", 10*time.Minute, time.Minute)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected no cooldown remaining, got %v", remaining)
	}
	if record.Identity != "admin@example.com" {
		t.Fatalf("expected normalized identity, got %q", record.Identity)
	}
	if !record.ExpiresAt.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("unexpected expires_at %v", record.ExpiresAt)
	}

	peeked, err := repo.Peek(ctx, "admin@example.com")
	if err != nil {
		t.Fatalf("Peek returned error: %v", err)
	}
	if peeked.Code != "123456" {
		t.Fatalf("expected stored code 123456, got %q", peeked.Code)
	}
	if peeked.Attempts != 0 {
		t.Fatalf("expected zero attempts, got %d", peeked.Attempts)
	}

	keyTTL := server.TTL("gate:otp:admin@example.com")
	if keyTTL <= 0 || keyTTL > 10*time.Minute {
		t.Fatalf("expected key ttl within (0, 10m], got %v", keyTTL)
	}
}

func TestOTPRepository_IssueDuringCooldown(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo, _ := newTestOTPRepository(t, now)
	ctx := context.Background()

	if _, _, err := repo.Issue(ctx, "admin@example.com", "123456", 10*time.Minute, time.Minute); err != nil {
		t.Fatalf("first issue failed: %v", err)
	}

	repo.WithClock(func() time.Time { return now.Add(20 * time.Second) })
	record, remaining, err := repo.Issue(ctx, "admin@example.com", "654321", 10*time.Minute, time.Minute)
	if err != nil {
		t.Fatalf("second issue returned error: %v", err)
	}
	if record != nil {
		t.Fatal("throttled issue must not return a record")
	}
	if remaining != 40*time.Second {
		t.Fatalf("expected 40s remaining, got %v", remaining)
	}

	// The original code survives a throttled issue.
	peeked, err := repo.Peek(ctx, "admin@example.com")
	if err != nil {
		t.Fatalf("Peek returned error: %v", err)
	}
	if peeked.Code != "123456" {
		t.Fatalf("expected original code intact, got %q", peeked.Code)
	}
}

func TestOTPRepository_IssueAfterCooldownOverwrites(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo, _ := newTestOTPRepository(t, now)
	ctx := context.Background()

	if _, _, err := repo.Issue(ctx, "admin@example.com", "123456", 10*time.Minute, time.Minute); err != nil {
		t.Fatalf("first issue failed: %v", err)
	}

	repo.WithClock(func() time.Time { return now.Add(61 * time.Second) })
	if _, _, err := repo.Issue(ctx, "admin@example.com", "654321", 10*time.Minute, time.Minute); err != nil {
		t.Fatalf("second issue failed: %v", err)
	}

	peeked, err := repo.Peek(ctx, "admin@example.com")
	if err != nil {
		t.Fatalf("Peek returned error: %v", err)
	}
	if peeked.Code != "654321" {
		t.Fatalf("expected replacement code, got %q", peeked.Code)
	}
	if peeked.Attempts != 0 {
		t.Fatalf("expected attempt counter reset, got %d", peeked.Attempts)
	}
}

func TestOTPRepository_ConsumeMatchedIsSingleUse(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo, server := newTestOTPRepository(t, now)
	ctx := context.Background()

	if _, _, err := repo.Issue(ctx, "admin@example.com", "123456", 10*time.Minute, time.Minute); err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	outcome, err := repo.Consume(ctx, "admin@example.com", "123456", 5)
	if err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	if outcome != port.ConsumeMatched {
		t.Fatalf("expected matched, got %v", outcome)
	}
	if server.Exists("gate:otp:admin@example.com") {
		t.Fatal("matched consume must delete the record")
	}

	outcome, err = repo.Consume(ctx, "admin@example.com", "123456", 5)
	if err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	if outcome != port.ConsumeMissing {
		t.Fatalf("expected missing on reuse, got %v", outcome)
	}
}

func TestOTPRepository_ConcurrentCorrectConsumesMatchOnce(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo, _ := newTestOTPRepository(t, now)
	ctx := context.Background()

	const racers = 8

	if _, _, err := repo.Issue(ctx, "admin@example.com", "123456", 10*time.Minute, time.Minute); err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	var (
		start    = make(chan struct{})
		wg       sync.WaitGroup
		outcomes = make(chan port.ConsumeOutcome, racers)
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			outcome, err := repo.Consume(ctx, "admin@example.com", "123456", 5)
			if err != nil {
				t.Errorf("Consume returned error: %v", err)
				return
			}
			outcomes <- outcome
		}()
	}
	close(start)
	wg.Wait()
	close(outcomes)

	// The compare-and-delete runs as one script, so however the racers
	// interleave, exactly one correct submission wins.
	matched := 0
	for outcome := range outcomes {
		switch outcome {
		case port.ConsumeMatched:
			matched++
		case port.ConsumeMissing:
		default:
			t.Fatalf("unexpected outcome %v for a correct code", outcome)
		}
	}
	if matched != 1 {
		t.Fatalf("expected exactly one matched consume, got %d", matched)
	}
}

func TestOTPRepository_ConsumeMismatchIncrementsAttempts(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo, _ := newTestOTPRepository(t, now)
	ctx := context.Background()

	if _, _, err := repo.Issue(ctx, "admin@example.com", "123456", 10*time.Minute, time.Minute); err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	outcome, err := repo.Consume(ctx, "admin@example.com", "000000", 5)
	if err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	if outcome != port.ConsumeMismatch {
		t.Fatalf("expected mismatch, got %v", outcome)
	}

	peeked, err := repo.Peek(ctx, "admin@example.com")
	if err != nil {
		t.Fatalf("Peek returned error: %v", err)
	}
	if peeked.Attempts != 1 {
		t.Fatalf("expected one recorded attempt, got %d", peeked.Attempts)
	}
}

func TestOTPRepository_ConsumeLockedAfterCeiling(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo, server := newTestOTPRepository(t, now)
	ctx := context.Background()

	if _, _, err := repo.Issue(ctx, "admin@example.com", "123456", 10*time.Minute, time.Minute); err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		outcome, err := repo.Consume(ctx, "admin@example.com", "000000", 3)
		if err != nil {
			t.Fatalf("attempt %d returned error: %v", i+1, err)
		}
		if outcome != port.ConsumeMismatch {
			t.Fatalf("attempt %d: expected mismatch, got %v", i+1, outcome)
		}
	}

	// Ceiling reached: even the correct code is refused and the record dropped.
	outcome, err := repo.Consume(ctx, "admin@example.com", "123456", 3)
	if err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	if outcome != port.ConsumeLocked {
		t.Fatalf("expected locked, got %v", outcome)
	}
	if server.Exists("gate:otp:admin@example.com") {
		t.Fatal("locked consume must delete the record")
	}
}

func TestOTPRepository_ConsumeExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo, server := newTestOTPRepository(t, now)
	ctx := context.Background()

	if _, _, err := repo.Issue(ctx, "admin@example.com", "123456", 10*time.Minute, time.Minute); err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	repo.WithClock(func() time.Time { return now.Add(10 * time.Minute) })
	outcome, err := repo.Consume(ctx, "admin@example.com", "123456", 5)
	if err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	if outcome != port.ConsumeExpired {
		t.Fatalf("expected expired, got %v", outcome)
	}
	if server.Exists("gate:otp:admin@example.com") {
		t.Fatal("expired consume must delete the record")
	}
}

func TestOTPRepository_PeekMissing(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo, _ := newTestOTPRepository(t, now)

	if _, err := repo.Peek(context.Background(), "missing@example.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOTPRepository_Delete(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo, server := newTestOTPRepository(t, now)
	ctx := context.Background()

	if _, _, err := repo.Issue(ctx, "admin@example.com", "123456", 10*time.Minute, time.Minute); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if err := repo.Delete(ctx, "admin@example.com"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if server.Exists("gate:otp:admin@example.com") {
		t.Fatal("record must be gone after delete")
	}
	if err := repo.Delete(ctx, "admin@example.com"); err != nil {
		t.Fatalf("deleting a missing record must not error: %v", err)
	}
}
