// Command fix-vehicle-request-types aligns vehicle request types with their vehicle's categories.
package main

import (
	"os"

	"github.com/vilonda/portal/internal/app"
	"github.com/vilonda/portal/internal/migrations"
)

func main() {
	os.Exit(app.RunMigration("fix-vehicle-request-types", migrations.FixVehicleRequestTypes))
}
