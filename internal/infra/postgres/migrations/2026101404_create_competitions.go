package migrations

import _ "embed"

//go:embed 2026101404_create_competitions.sql
var createCompetitionsSQL string

func init() {
	Migrations.MustRegister(execSQL(createCompetitionsSQL), execSQL(`DROP TABLE IF EXISTS competitions`))
}
