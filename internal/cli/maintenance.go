package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"quiz-arena-service/internal/config"
	"quiz-arena-service/internal/domain"
)

// NewRanksCmd groups one-off ranking operations.
func NewRanksCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ranks",
		Short: "Ranking maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "recompute",
		Short: "Reassign global ranks for all active users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), *configPath, func(ctx context.Context, d *deps) error {
				res, err := d.ranks.RecomputeGlobalRanks(ctx)
				if err != nil {
					return err
				}
				d.logger.Info("ranks recomputed", "ranked", res.Ranked, "updated", res.Updated, "unchanged", res.Unchanged, "skipped", res.Skipped)
				return nil
			})
		},
	})
	return cmd
}

// NewPointsCmd resets one periodic point bucket.
func NewPointsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "points",
		Short: "Point bucket maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:       "reset {daily|weekly|monthly}",
		Short:     "Zero a point bucket for every active user",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(domain.BucketDaily), string(domain.BucketWeekly), string(domain.BucketMonthly)},
		RunE: func(cmd *cobra.Command, args []string) error {
			bucket, err := parseBucket(args[0])
			if err != nil {
				return err
			}
			return withDeps(cmd.Context(), *configPath, func(ctx context.Context, d *deps) error {
				n, err := d.ledger.Reset(ctx, bucket)
				if err != nil {
					return err
				}
				d.logger.Info("points reset", "bucket", bucket, "users", n)
				return nil
			})
		},
	})
	return cmd
}

// NewQuizzesCmd loads quiz content into the backing store.
func NewQuizzesCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quizzes",
		Short: "Quiz content maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.json>",
		Short: "Upsert quizzes from a JSON file holding one quiz or an array of quizzes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			quizzes, err := readQuizzes(args[0])
			if err != nil {
				return err
			}
			return withDeps(cmd.Context(), *configPath, func(ctx context.Context, d *deps) error {
				n, err := d.catalog.Import(ctx, quizzes)
				d.logger.Info("quizzes imported", "file", args[0], "saved", n, "total", len(quizzes))
				return err
			})
		},
	})
	return cmd
}

// quizDocument is an imported quiz; a missing isActive means active.
type quizDocument struct {
	domain.Quiz
	IsActive *bool `json:"isActive"`
}

func readQuizzes(path string) ([]domain.Quiz, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	raw = bytes.TrimSpace(raw)
	var docs []quizDocument
	if len(raw) > 0 && raw[0] == '{' {
		docs = make([]quizDocument, 1)
		err = json.Unmarshal(raw, &docs[0])
	} else {
		err = json.Unmarshal(raw, &docs)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	quizzes := make([]domain.Quiz, 0, len(docs))
	for _, doc := range docs {
		doc.Quiz.IsActive = doc.IsActive == nil || *doc.IsActive
		quizzes = append(quizzes, doc.Quiz)
	}
	return quizzes, nil
}

func parseBucket(raw string) (domain.PointBucket, error) {
	switch b := domain.PointBucket(raw); b {
	case domain.BucketDaily, domain.BucketWeekly, domain.BucketMonthly:
		return b, nil
	}
	return "", fmt.Errorf("unknown point bucket %q", raw)
}

func withDeps(ctx context.Context, configPath string, fn func(context.Context, *deps) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)
	if cfg.Postgres.URL == "" {
		logger.Warn("maintenance command running against in-memory storage")
	}
	d, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.close()
	return fn(ctx, d)
}
