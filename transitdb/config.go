package transitdb

import "transitpulse.dev/internal/appconf"

// Config controls how the database client is created.
type Config struct {
	DBPath  string
	Env     appconf.Environment
	verbose bool
}

// NewConfig creates a database configuration.
func NewConfig(dbPath string, env appconf.Environment, verbose bool) Config {
	return Config{
		DBPath:  dbPath,
		Env:     env,
		verbose: verbose,
	}
}
