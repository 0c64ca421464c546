package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"exam-session-engine/internal/app"
	"exam-session-engine/internal/config"
	"exam-session-engine/internal/domain"
	transport "exam-session-engine/internal/transport/http"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the exam server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	service := app.NewExamService(b.remote, b.local, b.notifier, serviceOptions(cfg))
	if b.demo {
		quiz, questions := sampleQuiz()
		if err := service.ImportQuiz(ctx, quiz, questions); err != nil {
			log.Printf("load sample quiz: %v", err)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", transport.NewWSHandler(service).ServeWS)
	mux.Handle("/results", transport.NewResultsHandler(service))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// a listener failure cancels the group the same way a signal does
	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		log.Printf("starting exam server on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	drainReplication(service, shutdownTimeout)
	return err
}

// drainReplication gives in-flight replications up to timeout before
// cancelling them. Results are already in the local cache either way.
func drainReplication(service *app.ExamService, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		service.WaitReplication()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Printf("replication still pending after %s, cancelling", timeout)
	}
	service.Close()
}

// sampleQuiz is served when no Postgres is configured so the UI has
// something to run against.
func sampleQuiz() (domain.QuizMeta, []domain.Question) {
	quiz := domain.QuizMeta{
		ID:              "quiz-1",
		Title:           "Arithmetic warm-up",
		DurationSeconds: 300,
	}
	questions := []domain.Question{
		{
			ID:   "q1",
			Text: "What is 2 + 2?",
			Type: domain.QuestionSingleChoice,
			Options: []domain.Option{
				{ID: "o1", Text: "3"},
				{ID: "o2", Text: "4", IsCorrect: true},
				{ID: "o3", Text: "5"},
			},
			Points:   1,
			Required: true,
		},
		{
			ID:   "q2",
			Text: "Zero is an even number.",
			Type: domain.QuestionTrueFalse,
			Options: []domain.Option{
				{ID: domain.OptionTrue, Text: "True", IsCorrect: true},
				{ID: domain.OptionFalse, Text: "False"},
			},
			Points: 1,
		},
		{ID: "q3", Text: "Explain what a prime number is.", Type: domain.QuestionLongText, Points: 2},
	}
	return quiz, questions
}
