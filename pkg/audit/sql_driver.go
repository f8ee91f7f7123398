package audit

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"  // registers the "postgres" driver
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// OpenSQLStore opens dsn with the named driver ("postgres" or "sqlite") and
// wraps it as a SQLStore. It exists so a project's logging config can name a
// DSN string directly, without the caller importing the driver packages
// itself.
func OpenSQLStore(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("audit: unsupported sql driver %q (want postgres or sqlite)", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: ping %s: %w", driver, err)
	}

	store, err := NewSQLStore(db, driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
