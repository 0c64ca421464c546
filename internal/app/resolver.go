package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"exam-session-engine/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionSource records which branch supplied a resolution's questions.
type QuestionSource string

const (
	SourceEmbedded    QuestionSource = "embedded"
	SourceRemote      QuestionSource = "remote"
	SourceLocal       QuestionSource = "local"
	SourceSynthesized QuestionSource = "synthesized"
)

// Resolution is a consistent quiz/questions pair. Degraded is set when the
// quiz metadata came from the local cache instead of the remote store.
type Resolution struct {
	Quiz           domain.QuizMeta
	Questions      []domain.Question
	Degraded       bool
	QuestionSource QuestionSource
}

// Resolver assembles quiz content from the remote store and the local cache,
// healing the cache with whatever it resolved.
type Resolver struct {
	remote RemoteStore
	local  KeyValueStore
	sf     singleflight.Group
}

func NewResolver(remote RemoteStore, local KeyValueStore) *Resolver {
	return &Resolver{remote: remote, local: local}
}

// DefaultResolveTimeout bounds one shared resolution attempt.
const DefaultResolveTimeout = 30 * time.Second

// Resolve runs the full ordered attempt. Every call starts again from the
// remote store; concurrent calls for one quiz share a single attempt.
func (r *Resolver) Resolve(ctx context.Context, quizID string) (Resolution, error) {
	// the shared attempt outlives any single caller's cancellation
	ch := r.sf.DoChan(quizID, func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultResolveTimeout)
		defer cancel()
		return r.resolve(shared, quizID)
	})
	var out singleflight.Result
	select {
	case out = <-ch:
	case <-ctx.Done():
		return Resolution{}, ctx.Err()
	}
	if out.Err != nil {
		return Resolution{}, out.Err
	}
	res := out.Val.(Resolution)
	res.Questions = append([]domain.Question(nil), res.Questions...)
	return res, nil
}

func (r *Resolver) resolve(ctx context.Context, quizID string) (Resolution, error) {
	meta, remoteOK := r.remoteQuiz(ctx, quizID)
	degraded := false
	if !remoteOK {
		local, found, err := r.localQuiz(ctx, quizID)
		if err != nil && errors.Is(err, domain.ErrStorageCorrupt) {
			return Resolution{}, &domain.ResolveError{Kind: domain.KindStorageCorrupt, QuizID: quizID, Err: err}
		}
		if !found {
			return Resolution{}, &domain.ResolveError{Kind: domain.KindQuizNotFound, QuizID: quizID, Err: err}
		}
		meta = local
		degraded = true
	}

	questions, source, err := r.questions(ctx, meta, remoteOK)
	if err != nil {
		return Resolution{}, err
	}
	questions = SanitizeQuestions(questions)

	meta.Questions = nil
	if meta.QuestionCount == 0 {
		meta.QuestionCount = len(questions)
	}
	r.writeBack(ctx, meta, questions)

	return Resolution{
		Quiz:           meta,
		Questions:      questions,
		Degraded:       degraded,
		QuestionSource: source,
	}, nil
}

func (r *Resolver) remoteQuiz(ctx context.Context, quizID string) (domain.QuizMeta, bool) {
	if r.remote == nil {
		return domain.QuizMeta{}, false
	}
	meta, err := r.remote.GetQuiz(ctx, quizID)
	if err != nil {
		log.Printf("resolve %s: remote quiz unavailable: %v", quizID, err)
		return domain.QuizMeta{}, false
	}
	if meta.ID == "" {
		log.Printf("resolve %s: remote quiz malformed", quizID)
		return domain.QuizMeta{}, false
	}
	return meta, true
}

func (r *Resolver) localQuiz(ctx context.Context, quizID string) (domain.QuizMeta, bool, error) {
	raw, found, err := r.local.Get(ctx, QuizIndexKey)
	if err != nil {
		return domain.QuizMeta{}, false, &domain.StorageError{Op: "get", Key: QuizIndexKey, Err: err}
	}
	if !found {
		return domain.QuizMeta{}, false, nil
	}
	index, err := DecodeQuizIndex(raw)
	if err != nil {
		return domain.QuizMeta{}, false, err
	}
	for _, meta := range index {
		if meta.ID == quizID {
			return meta, true, nil
		}
	}
	return domain.QuizMeta{}, false, nil
}

func (r *Resolver) questions(ctx context.Context, meta domain.QuizMeta, useRemote bool) ([]domain.Question, QuestionSource, error) {
	if len(meta.Questions) > 0 {
		return meta.Questions, SourceEmbedded, nil
	}

	if useRemote {
		qs, err := r.remote.ListQuestions(ctx, meta.ID)
		switch {
		case err != nil:
			log.Printf("resolve %s: remote questions unavailable: %v", meta.ID, err)
		case len(qs) > 0:
			return qs, SourceRemote, nil
		}
	}

	for _, key := range QuestionKeys(meta.ID) {
		raw, found, err := r.local.Get(ctx, key)
		if err != nil {
			log.Printf("resolve %s: read %s: %v", meta.ID, key, err)
			continue
		}
		if !found {
			continue
		}
		qs, err := DecodeQuestions(raw)
		if err != nil {
			log.Printf("resolve %s: skip %s: %v", meta.ID, key, err)
			continue
		}
		if len(qs) > 0 {
			return qs, SourceLocal, nil
		}
	}

	if meta.QuestionCount > 0 {
		return SynthesizeQuestions(meta.ID, meta.QuestionCount), SourceSynthesized, nil
	}
	return nil, "", &domain.ResolveError{Kind: domain.KindQuestionsNotFound, QuizID: meta.ID}
}

// writeBack stores the resolved content under the quiz index and every
// question key. Failures are logged; the resolution itself stands.
func (r *Resolver) writeBack(ctx context.Context, meta domain.QuizMeta, questions []domain.Question) {
	data, err := json.Marshal(questions)
	if err != nil {
		log.Printf("resolve %s: encode questions: %v", meta.ID, err)
		return
	}
	for _, key := range QuestionKeys(meta.ID) {
		if err := r.local.Set(ctx, key, data); err != nil {
			log.Printf("resolve %s: write %s: %v", meta.ID, key, err)
		}
	}

	var index []domain.QuizMeta
	if raw, found, err := r.local.Get(ctx, QuizIndexKey); err == nil && found {
		// a corrupt index is replaced rather than preserved
		index, _ = DecodeQuizIndex(raw)
	}
	replaced := false
	for i := range index {
		if index[i].ID == meta.ID {
			index[i] = meta
			replaced = true
		}
		index[i].Questions = nil
	}
	if !replaced {
		index = append(index, meta)
	}
	data, err = json.Marshal(index)
	if err != nil {
		log.Printf("resolve %s: encode quiz index: %v", meta.ID, err)
		return
	}
	if err := r.local.Set(ctx, QuizIndexKey, data); err != nil {
		log.Printf("resolve %s: write quiz index: %v", meta.ID, err)
	}
}

// SynthesizeQuestions builds n placeholder questions cycling through every
// supported type so a session can proceed without stored content.
func SynthesizeQuestions(quizID string, n int) []domain.Question {
	questions := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		t := domain.QuestionTypes[i%len(domain.QuestionTypes)]
		q := domain.Question{
			ID:     quizID + "-sample-" + strconv.Itoa(i+1),
			Text:   fmt.Sprintf("Sample question %d", i+1),
			Type:   t,
			Points: 1,
		}
		switch t {
		case domain.QuestionSingleChoice:
			q.Options = []domain.Option{
				{ID: q.ID + "-a", Text: "Option A", IsCorrect: true},
				{ID: q.ID + "-b", Text: "Option B"},
				{ID: q.ID + "-c", Text: "Option C"},
				{ID: q.ID + "-d", Text: "Option D"},
			}
		case domain.QuestionTrueFalse:
			q.Options = trueFalseOptions(true)
		}
		questions = append(questions, q)
	}
	return questions
}
