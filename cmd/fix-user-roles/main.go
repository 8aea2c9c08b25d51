// Command fix-user-roles sets every user's role to the one implied by its portal.
package main

import (
	"os"

	"github.com/vilonda/portal/internal/app"
	"github.com/vilonda/portal/internal/migrations"
)

func main() {
	os.Exit(app.RunMigration("fix-user-roles", migrations.FixUserRoles))
}
