package database

import "strings"

// Driver names a storage backend.
type Driver string

const (
	// DriverPostgres is the production backend.
	DriverPostgres Driver = "postgres"
	// DriverSQLite backs local mode and tests.
	DriverSQLite Driver = "sqlite"
)

func (d Driver) String() string {
	return string(d)
}

// IsValid reports whether d is a supported backend.
func (d Driver) IsValid() bool {
	return d == DriverPostgres || d == DriverSQLite
}

// DetectDriver infers the backend from a connection string.
// An empty URL selects SQLite so the service can run without a database server.
func DetectDriver(url string) Driver {
	switch {
	case url == "":
		return DriverSQLite
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(url, "sqlite://"), strings.HasPrefix(url, "file:"), url == ":memory:":
		return DriverSQLite
	}

	for _, suffix := range []string{".db", ".sqlite", ".sqlite3"} {
		if strings.HasSuffix(url, suffix) {
			return DriverSQLite
		}
	}
	return DriverPostgres
}
