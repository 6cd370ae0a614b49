package migrations

import _ "embed"

//go:embed 2026101407_add_daily_quizzes_completed.sql
var addDailyQuizzesCompletedSQL string

func init() {
	Migrations.MustRegister(
		execSQL(addDailyQuizzesCompletedSQL),
		execSQL(`ALTER TABLE users DROP COLUMN IF EXISTS daily_quizzes_completed`),
	)
}
