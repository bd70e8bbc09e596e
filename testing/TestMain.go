// Package testing prepares the environment for tests that boot entrypoints.
package testing

import (
	"os"
	stdtesting "testing"

	"github.com/accounting-app/accounting-app/internal/testing/guard"
)

// fixtureEnv keeps LoadConfig away from developer overrides.
var fixtureEnv = map[string]string{
	"REPORT_USER_EMAIL": "admin@company2.com",
	"LOG_FORMAT":        "json",
}

func init() {
	for key, value := range fixtureEnv {
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, value)
		}
	}
}

// TestMain is a ready-made TestMain for packages that want to delegate to it.
func TestMain(m *stdtesting.M) {
	_ = os.Setenv(guard.EnvTestMode, "1")
	os.Exit(m.Run())
}
