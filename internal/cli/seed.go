package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	"exam-session-engine/internal/app"
	"exam-session-engine/internal/config"
	"exam-session-engine/internal/domain"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewSeedCmd imports quizzes from YAML files into the configured stores.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <quiz.yaml>...",
		Short: "Import quizzes from YAML files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, args)
		},
	}
}

type quizFile struct {
	ID              string         `yaml:"id"`
	Title           string         `yaml:"title"`
	Description     string         `yaml:"description"`
	DurationSeconds int            `yaml:"durationSeconds"`
	Questions       []questionFile `yaml:"questions"`
}

type questionFile struct {
	ID       string       `yaml:"id"`
	Text     string       `yaml:"text"`
	Type     string       `yaml:"type"`
	Points   *float64     `yaml:"points"`
	Required bool         `yaml:"required"`
	Options  []optionFile `yaml:"options"`
}

type optionFile struct {
	ID        string `yaml:"id"`
	Text      string `yaml:"text"`
	IsCorrect bool   `yaml:"isCorrect"`
}

func runSeed(ctx context.Context, configPath string, files []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()
	service := app.NewExamService(b.remote, b.local, b.notifier, serviceOptions(cfg))
	defer service.Close()

	for _, path := range files {
		quiz, questions, err := loadQuizFile(path)
		if err != nil {
			return err
		}
		if err := service.ImportQuiz(ctx, quiz, questions); err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		log.Printf("seeded quiz %s (%d questions) from %s", quiz.ID, len(questions), path)
	}
	return nil
}

func loadQuizFile(path string) (domain.QuizMeta, []domain.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.QuizMeta{}, nil, err
	}
	var f quizFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return domain.QuizMeta{}, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if f.ID == "" {
		return domain.QuizMeta{}, nil, fmt.Errorf("parse %s: quiz id is required", path)
	}

	quiz := domain.QuizMeta{
		ID:              f.ID,
		Title:           f.Title,
		Description:     f.Description,
		DurationSeconds: f.DurationSeconds,
	}
	questions := make([]domain.Question, 0, len(f.Questions))
	for _, qf := range f.Questions {
		q := domain.Question{
			ID:       qf.ID,
			Text:     qf.Text,
			Type:     app.CoerceQuestionType(qf.Type),
			Required: qf.Required,
			Points:   1,
		}
		if qf.Points != nil {
			q.Points = *qf.Points
		}
		for _, of := range qf.Options {
			q.Options = append(q.Options, domain.Option{ID: of.ID, Text: of.Text, IsCorrect: of.IsCorrect})
		}
		questions = append(questions, q)
	}
	return quiz, questions, nil
}
