package migrations

import _ "embed"

//go:embed 2026101401_create_quizzes.sql
var createQuizzesSQL string

func init() {
	Migrations.MustRegister(execSQL(createQuizzesSQL), execSQL(`DROP TABLE IF EXISTS quizzes`))
}
