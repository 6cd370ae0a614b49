package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quiz-arena-service/internal/domain"
	"quiz-arena-service/internal/infra/postgres/migrations"
)

const (
	uniqueViolation        = "23505"
	referralCodeConstraint = "users_referral_code_key"
)

// Open connects bun to PostgreSQL through pgdriver.
func Open(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// Migrate applies all pending schema migrations and returns the applied group.
func Migrate(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return group, nil
}

// Store implements the user, attempt, competition, referral and channel repositories on
// PostgreSQL. Read-modify-write operations lock the row with SELECT ... FOR UPDATE.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) error {
	_, err := s.db.NewInsert().Model(newUserRow(user)).Exec(ctx)
	if isUniqueViolation(err) {
		return userConflict(err)
	}
	if err != nil {
		return fmt.Errorf("insert user %s: %w", user.ID, err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	return s.getUser(ctx, s.db.NewSelect().Where("id = ?", userID))
}

func (s *Store) GetUserByReferralCode(ctx context.Context, code string) (domain.User, error) {
	return s.getUser(ctx, s.db.NewSelect().Where("referral_code = ?", code))
}

func (s *Store) getUser(ctx context.Context, q *bun.SelectQuery) (domain.User, error) {
	row := new(userRow)
	if err := q.Model(row).Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}
	return row.domain(), nil
}

func (s *Store) UpdateUser(ctx context.Context, userID string, mutate func(*domain.User) error) (domain.User, error) {
	var updated domain.User
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		updated, err = updateUserTx(ctx, tx, userID, mutate)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	return updated, nil
}

func updateUserTx(ctx context.Context, tx bun.Tx, userID string, mutate func(*domain.User) error) (domain.User, error) {
	row := new(userRow)
	if err := tx.NewSelect().Model(row).Where("id = ?", userID).For("UPDATE").Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("lock user %s: %w", userID, err)
	}
	user := row.domain()
	if err := mutate(&user); err != nil {
		return domain.User{}, err
	}
	user.ID = userID
	if _, err := tx.NewUpdate().Model(newUserRow(user)).WherePK().Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, userConflict(err)
		}
		return domain.User{}, fmt.Errorf("update user %s: %w", userID, err)
	}
	return user, nil
}

func (s *Store) ListActiveUsers(ctx context.Context) ([]domain.User, error) {
	var rows []userRow
	if err := s.db.NewSelect().Model(&rows).Where("is_active").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select active users: %w", err)
	}
	users := make([]domain.User, 0, len(rows))
	for i := range rows {
		users = append(users, rows[i].domain())
	}
	return users, nil
}

func (s *Store) ResetPoints(ctx context.Context, bucket domain.PointBucket) (int64, error) {
	var column string
	switch bucket {
	case domain.BucketDaily:
		column = "daily_points"
	case domain.BucketWeekly:
		column = "weekly_points"
	case domain.BucketMonthly:
		column = "monthly_points"
	default:
		return 0, fmt.Errorf("unknown point bucket %q", bucket)
	}
	res, err := s.db.NewUpdate().
		Model((*userRow)(nil)).
		Set("? = 0", bun.Ident(column)).
		Where("is_active").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("reset %s points: %w", bucket, err)
	}
	return res.RowsAffected()
}

func (s *Store) CreateAttempt(ctx context.Context, attempt domain.QuizAttempt) error {
	if _, err := s.db.NewInsert().Model(newAttemptRow(attempt)).Exec(ctx); err != nil {
		return fmt.Errorf("insert attempt %s: %w", attempt.ID, err)
	}
	return nil
}

func (s *Store) GetAttempt(ctx context.Context, attemptID string) (domain.QuizAttempt, error) {
	row := new(attemptRow)
	if err := s.db.NewSelect().Model(row).Where("id = ?", attemptID).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.QuizAttempt{}, domain.ErrAttemptNotFound
		}
		return domain.QuizAttempt{}, fmt.Errorf("select attempt %s: %w", attemptID, err)
	}
	return row.domain(), nil
}

func (s *Store) UpdateAttempt(ctx context.Context, attemptID string, mutate func(*domain.QuizAttempt) error) (domain.QuizAttempt, error) {
	var updated domain.QuizAttempt
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := new(attemptRow)
		if err := tx.NewSelect().Model(row).Where("id = ?", attemptID).For("UPDATE").Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrAttemptNotFound
			}
			return fmt.Errorf("lock attempt %s: %w", attemptID, err)
		}
		attempt := row.domain()
		if err := mutate(&attempt); err != nil {
			return err
		}
		attempt.ID = attemptID
		if _, err := tx.NewUpdate().Model(newAttemptRow(attempt)).WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("update attempt %s: %w", attemptID, err)
		}
		updated = attempt
		return nil
	})
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	return updated, nil
}

func (s *Store) HasCompletion(ctx context.Context, userID, quizID, completionKey string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*attemptRow)(nil)).
		Where("user_id = ?", userID).
		Where("quiz_id = ?", quizID).
		Where("completion_key = ?", completionKey).
		Where("status = ?", string(domain.AttemptCompleted)).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check completion: %w", err)
	}
	return exists, nil
}

// CommitCompletion locks the attempt row, finalizes what is stored and flips it
// to completed in the same transaction as the owner's update. The partial
// unique index on completed attempts rejects a second completion for the key.
func (s *Store) CommitCompletion(ctx context.Context, attemptID string, finalize func(*domain.QuizAttempt) error, mutate func(domain.QuizAttempt, *domain.User) error) (domain.QuizAttempt, domain.User, error) {
	var (
		done    domain.QuizAttempt
		updated domain.User
	)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := new(attemptRow)
		if err := tx.NewSelect().Model(row).Where("id = ?", attemptID).For("UPDATE").Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrAttemptNotFound
			}
			return fmt.Errorf("lock attempt %s: %w", attemptID, err)
		}
		stored := row.domain()
		if stored.Status != domain.AttemptInProgress {
			return domain.ErrAttemptCompleted
		}
		done = stored.Clone()
		if err := finalize(&done); err != nil {
			return err
		}
		done.ID, done.UserID, done.QuizID = stored.ID, stored.UserID, stored.QuizID

		_, err := tx.NewUpdate().Model(newAttemptRow(done)).WherePK().Exec(ctx)
		if isUniqueViolation(err) {
			return domain.ErrDuplicateCompletion
		}
		if err != nil {
			return fmt.Errorf("complete attempt %s: %w", attemptID, err)
		}
		updated, err = updateUserTx(ctx, tx, done.UserID, func(u *domain.User) error {
			return mutate(done, u)
		})
		return err
	})
	if err != nil {
		return domain.QuizAttempt{}, domain.User{}, err
	}
	return done, updated, nil
}

func (s *Store) ListCompletedAttempts(ctx context.Context, userID string, offset, limit int) ([]domain.QuizAttempt, int, error) {
	var rows []attemptRow
	total, err := s.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Where("status = ?", string(domain.AttemptCompleted)).
		Order("completed_at DESC", "id ASC").
		Offset(offset).
		Limit(limit).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("select completed attempts: %w", err)
	}
	out := make([]domain.QuizAttempt, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].domain())
	}
	return out, total, nil
}

func (s *Store) CreateCompetition(ctx context.Context, competition domain.Competition) error {
	_, err := s.db.NewInsert().Model(newCompetitionRow(competition)).Exec(ctx)
	if isUniqueViolation(err) {
		return domain.ErrCompetitionExists
	}
	if err != nil {
		return fmt.Errorf("insert competition %s: %w", competition.ID, err)
	}
	return nil
}

func (s *Store) GetCompetition(ctx context.Context, competitionID string) (domain.Competition, error) {
	row := new(competitionRow)
	if err := s.db.NewSelect().Model(row).Where("id = ?", competitionID).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Competition{}, domain.ErrCompetitionNotFound
		}
		return domain.Competition{}, fmt.Errorf("select competition %s: %w", competitionID, err)
	}
	return row.domain(), nil
}

func (s *Store) UpdateCompetition(ctx context.Context, competitionID string, mutate func(*domain.Competition) error) (domain.Competition, error) {
	var updated domain.Competition
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := new(competitionRow)
		if err := tx.NewSelect().Model(row).Where("id = ?", competitionID).For("UPDATE").Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrCompetitionNotFound
			}
			return fmt.Errorf("lock competition %s: %w", competitionID, err)
		}
		c := row.domain()
		if err := mutate(&c); err != nil {
			return err
		}
		c.ID = competitionID
		if _, err := tx.NewUpdate().Model(newCompetitionRow(c)).WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("update competition %s: %w", competitionID, err)
		}
		updated = c
		return nil
	})
	if err != nil {
		return domain.Competition{}, err
	}
	return updated, nil
}

func (s *Store) ListCompetitions(ctx context.Context) ([]domain.Competition, error) {
	var rows []competitionRow
	if err := s.db.NewSelect().Model(&rows).Order("start_date ASC", "id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select competitions: %w", err)
	}
	out := make([]domain.Competition, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].domain())
	}
	return out, nil
}

// CreateReferredUser inserts the user and the referral and rewards the
// referrer in one transaction.
func (s *Store) CreateReferredUser(ctx context.Context, user domain.User, referral domain.Referral, reward func(*domain.User) error) (domain.User, error) {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(newUserRow(user)).Exec(ctx)
		if isUniqueViolation(err) {
			return userConflict(err)
		}
		if err != nil {
			return fmt.Errorf("insert user %s: %w", user.ID, err)
		}
		_, err = tx.NewInsert().Model(newReferralRow(referral)).Exec(ctx)
		if isUniqueViolation(err) {
			return domain.ErrAlreadyReferred
		}
		if err != nil {
			return fmt.Errorf("insert referral %s: %w", referral.ID, err)
		}
		_, err = updateUserTx(ctx, tx, referral.ReferrerID, reward)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (s *Store) ListReferrals(ctx context.Context, referrerID string) ([]domain.Referral, error) {
	var rows []referralRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("referrer_id = ?", referrerID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select referrals: %w", err)
	}
	out := make([]domain.Referral, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].domain())
	}
	return out, nil
}

func (s *Store) CreateChannel(ctx context.Context, channel domain.Channel) error {
	_, err := s.db.NewInsert().Model(newChannelRow(channel)).Exec(ctx)
	if isUniqueViolation(err) {
		return domain.ErrChannelExists
	}
	if err != nil {
		return fmt.Errorf("insert channel %s: %w", channel.ID, err)
	}
	return nil
}

func (s *Store) GetChannel(ctx context.Context, channelID string) (domain.Channel, error) {
	row := new(channelRow)
	if err := s.db.NewSelect().Model(row).Where("id = ?", channelID).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Channel{}, domain.ErrChannelNotFound
		}
		return domain.Channel{}, fmt.Errorf("select channel %s: %w", channelID, err)
	}
	return row.domain(), nil
}

func (s *Store) ListChannels(ctx context.Context) ([]domain.Channel, error) {
	var rows []channelRow
	if err := s.db.NewSelect().Model(&rows).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select channels: %w", err)
	}
	out := make([]domain.Channel, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].domain())
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation
}

// userConflict tells a duplicate referral code from a duplicate user id.
func userConflict(err error) error {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.Field('n') == referralCodeConstraint {
		return domain.ErrReferralCodeTaken
	}
	return domain.ErrUserExists
}
