package migrations

import _ "embed"

//go:embed 2026101405_create_referrals.sql
var createReferralsSQL string

func init() {
	Migrations.MustRegister(execSQL(createReferralsSQL), execSQL(`DROP TABLE IF EXISTS referrals`))
}
