package store

import (
	"fmt"
	"sort"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DriverFactory builds a gorm dialector from a DSN
type DriverFactory func(dsn string) gorm.Dialector

var driverFactories = map[string]DriverFactory{
	"sqlite":   sqlite.Open,
	"postgres": postgres.Open,
}

// GetDialector resolves a driver name to a dialector for the given DSN
func GetDialector(driver, dsn string) (gorm.Dialector, error) {
	factory, ok := driverFactories[driver]
	if !ok {
		return nil, fmt.Errorf(
			"unsupported database driver %q (supported: %s)",
			driver, strings.Join(SupportedDrivers(), ", "),
		)
	}
	return factory(dsn), nil
}

// RegisterDriver adds a database driver beyond the built-in sqlite and
// postgres, for deployments that bring their own dialector.
func RegisterDriver(name string, factory DriverFactory) {
	driverFactories[name] = factory
}

// SupportedDrivers lists the registered driver names, sorted
func SupportedDrivers() []string {
	names := make([]string, 0, len(driverFactories))
	for name := range driverFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
