package setup

import "errors"

// ErrMigrationsPending is returned when the operator declines to run pending migrations.
var ErrMigrationsPending = errors.New("database migrations are pending")
