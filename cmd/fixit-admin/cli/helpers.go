package cli

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/fixitug/fixit-admin/internal/store"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from the --data-dir flag,
// FIXIT_DATA_DIR env var, or ~/.fixit-admin as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("FIXIT_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return home + "/.fixit-admin"
}

// openStore opens the configured store: postgres when FIXIT_DB_DRIVER is
// "postgres" (FIXIT_DB_DSN required), the embedded SQLite store otherwise.
func openStore() (*store.Store, error) {
	if viper.GetString("db_driver") == "postgres" {
		dsn := viper.GetString("db_dsn")
		if dsn == "" {
			return nil, fmt.Errorf("db_driver is postgres but FIXIT_DB_DSN is not set")
		}
		return store.NewPostgresStore(dsn)
	}
	return store.NewStore(resolveDataDir())
}

// production reports whether the configured environment is production.
// Production tightens the OTP issuance limit, marks cookies Secure, enables
// HSTS, and hides error detail.
func production() bool {
	return viper.GetString("env") == "production"
}
