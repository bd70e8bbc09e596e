// Package guard switches entrypoints into test mode for packages that import it.
package guard

import "os"

// EnvTestMode is read by app.InTestMode.
const EnvTestMode = "ACCOUNTING_TEST_MODE"

func init() {
	if os.Getenv(EnvTestMode) == "" {
		_ = os.Setenv(EnvTestMode, "1")
	}
}
