package migrations

import _ "embed"

//go:embed 2026101406_create_channels.sql
var createChannelsSQL string

func init() {
	Migrations.MustRegister(execSQL(createChannelsSQL), execSQL(`DROP TABLE IF EXISTS channels`))
}
