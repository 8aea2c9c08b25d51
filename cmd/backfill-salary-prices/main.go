// Command backfill-salary-prices derives price matrices for salary vehicles that have none.
package main

import (
	"os"

	"github.com/vilonda/portal/internal/app"
	"github.com/vilonda/portal/internal/migrations"
)

func main() {
	os.Exit(app.RunMigration("backfill-salary-prices", migrations.BackfillSalaryPriceMatrix))
}
