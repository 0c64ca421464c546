package redis

import (
	"context"
	"testing"
	"time"

	"exam-session-engine/internal/app"
	"exam-session-engine/internal/domain"
	"exam-session-engine/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestKVStoreRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewKVStore(newClient(mr), "exam:", 0)
	ctx := context.Background()

	if _, found, err := store.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("expected miss, got found=%v err=%v", found, err)
	}
	if err := store.Set(ctx, "quizzes", []byte(`[{"id":"Q1"}]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("exam:quizzes") {
		t.Fatalf("expected prefixed key in redis")
	}
	if ttl := mr.TTL("exam:quizzes"); ttl != 0 {
		t.Fatalf("expected no expiry, got %v", ttl)
	}
	got, found, err := store.Get(ctx, "quizzes")
	if err != nil || !found || string(got) != `[{"id":"Q1"}]` {
		t.Fatalf("unexpected get: %q found=%v err=%v", got, found, err)
	}
}

func TestKVStoreAppliesTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewKVStore(newClient(mr), "", time.Minute)
	if err := store.Set(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
	ttl := mr.TTL("k")
	if ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected ttl within jitter bounds, got %v", ttl)
	}
}

func TestKVStoreBacksResolverWhenRemoteIsDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	local := NewKVStore(newClient(mr), "", 0)
	remote := memory.NewRemoteStore()
	if err := remote.SaveQuiz(ctx, domain.QuizMeta{ID: "Q1", Title: "Quiz", DurationSeconds: 60}, []domain.Question{
		{ID: "q1", Text: "Pick", Type: domain.QuestionSingleChoice, Points: 1, Options: []domain.Option{
			{ID: "a", Text: "A", IsCorrect: true}, {ID: "b", Text: "B"},
		}},
	}); err != nil {
		t.Fatalf("seed remote: %v", err)
	}

	resolver := app.NewResolver(remote, local)
	if _, err := resolver.Resolve(ctx, "Q1"); err != nil {
		t.Fatalf("online resolve: %v", err)
	}
	for _, key := range app.QuestionKeys("Q1") {
		if !mr.Exists(key) {
			t.Fatalf("expected %s written back to redis", key)
		}
	}

	remote.SetOffline(context.DeadlineExceeded)
	res, err := resolver.Resolve(ctx, "Q1")
	if err != nil {
		t.Fatalf("offline resolve: %v", err)
	}
	if !res.Degraded || len(res.Questions) != 1 || res.QuestionSource != app.SourceLocal {
		t.Fatalf("expected degraded local resolution, got %+v", res)
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
