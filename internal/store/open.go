package store

import (
	"context"
	"fmt"

	"github.com/erazemk/vitrina/internal/db"
)

// DriverMongo selects the MongoDB backend.
const DriverMongo = "mongo"

// Open connects to the backend named by driver. For the SQL drivers dsn is the
// database path or connection string and the schema is ensured; for mongo dsn
// is the connection URI and database names the Mongo database.
func Open(ctx context.Context, driver, dsn, database string) (Backend, error) {
	switch driver {
	case DriverMongo:
		return OpenMongo(ctx, dsn, database)
	case db.DriverSQLite, db.DriverPostgres:
		sqlDB, err := db.Open(driver, dsn)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureSchema(sqlDB, driver); err != nil {
			sqlDB.Close()
			return nil, err
		}
		return NewSQLBackend(sqlDB, driver), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
