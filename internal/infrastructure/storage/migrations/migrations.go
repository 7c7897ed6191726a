// Package migrations holds the schema history as goose Go migrations.
package migrations

import (
	"github.com/pressly/goose/v3"
)

// All returns every migration in version order.
func All() []*goose.Migration {
	return []*goose.Migration{
		goose.NewGoMigration(1,
			&goose.GoFunc{RunTx: upLedgerTables},
			&goose.GoFunc{RunTx: downLedgerTables}),
		goose.NewGoMigration(2,
			&goose.GoFunc{RunTx: upRecurringTables},
			&goose.GoFunc{RunTx: downRecurringTables}),
		goose.NewGoMigration(3,
			&goose.GoFunc{RunTx: upAlertTables},
			&goose.GoFunc{RunTx: downAlertTables}),
	}
}
