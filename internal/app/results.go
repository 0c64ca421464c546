package app

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"exam-session-engine/internal/domain"
)

// ResultsAggregator merges remote and locally cached results for reports.
type ResultsAggregator struct {
	local  KeyValueStore
	remote RemoteStore
}

func NewResultsAggregator(local KeyValueStore, remote RemoteStore) *ResultsAggregator {
	return &ResultsAggregator{local: local, remote: remote}
}

// LoadResults returns the merged results for a quiz ordered by student id.
func (a *ResultsAggregator) LoadResults(ctx context.Context, quizID string) ([]domain.SessionResult, error) {
	results, err := a.load(ctx, quizID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].StudentID != results[j].StudentID {
			return results[i].StudentID < results[j].StudentID
		}
		return results[i].SubmittedAt.Before(results[j].SubmittedAt)
	})
	return results, nil
}

// LoadRecent returns the merged results for a quiz, most recent first.
func (a *ResultsAggregator) LoadRecent(ctx context.Context, quizID string) ([]domain.SessionResult, error) {
	results, err := a.load(ctx, quizID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(results, func(i, j int) bool {
		if !results[i].SubmittedAt.Equal(results[j].SubmittedAt) {
			return results[i].SubmittedAt.After(results[j].SubmittedAt)
		}
		return results[i].StudentID < results[j].StudentID
	})
	return results, nil
}

type resultIdentity struct {
	studentID   string
	quizID      string
	submittedAt int64
}

func identityOf(r domain.SessionResult) resultIdentity {
	return resultIdentity{
		studentID:   r.StudentID,
		quizID:      r.QuizID,
		submittedAt: r.SubmittedAt.UnixMilli(),
	}
}

func (a *ResultsAggregator) load(ctx context.Context, quizID string) ([]domain.SessionResult, error) {
	var (
		remote    []domain.SessionResult
		local     []domain.SessionResult
		remoteErr error
		localErr  error
	)

	// both sources are always read; a failure in one never cancels the other
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if a.remote == nil {
			remoteErr = fmt.Errorf("remote store not configured")
			return
		}
		remote, remoteErr = a.remote.ListResults(ctx, quizID)
	}()
	go func() {
		defer wg.Done()
		local, localErr = a.localResults(ctx, quizID)
	}()
	wg.Wait()

	if remoteErr != nil {
		log.Printf("results %s: remote unavailable: %v", quizID, remoteErr)
	}
	if localErr != nil {
		log.Printf("results %s: local unavailable: %v", quizID, localErr)
	}
	if remoteErr != nil && len(local) == 0 {
		return nil, fmt.Errorf("results for quiz %s: %w: %v", quizID, domain.ErrNotFound, remoteErr)
	}

	seen := make(map[resultIdentity]bool, len(remote)+len(local))
	merged := make([]domain.SessionResult, 0, len(remote)+len(local))
	for _, r := range remote {
		if r.QuizID == "" {
			r.QuizID = quizID
		}
		id := identityOf(r)
		if seen[id] {
			continue
		}
		seen[id] = true
		merged = append(merged, r)
	}
	for _, r := range local {
		if r.QuizID == "" {
			r.QuizID = quizID
		}
		id := identityOf(r)
		if seen[id] {
			continue
		}
		seen[id] = true
		merged = append(merged, r)
	}
	return merged, nil
}

// localResults reads every result key for the quiz. Unreadable keys are
// skipped; an error is returned only when no key could be read at all.
func (a *ResultsAggregator) localResults(ctx context.Context, quizID string) ([]domain.SessionResult, error) {
	var (
		out     []domain.SessionResult
		lastErr error
		readOK  bool
	)
	for _, key := range ResultKeys(quizID) {
		raw, found, err := a.local.Get(ctx, key)
		if err != nil {
			lastErr = &domain.StorageError{Op: "get", Key: key, Err: err}
			continue
		}
		readOK = true
		if !found {
			continue
		}
		results, err := DecodeResults(raw)
		if err != nil {
			log.Printf("results %s: skip %s: %v", quizID, key, err)
			continue
		}
		out = append(out, results...)
	}
	if !readOK {
		return nil, lastErr
	}
	return out, nil
}
