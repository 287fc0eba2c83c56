// Package testing prepares the environment for package tests: importing it
// switches the binaries into test mode and points external services at
// unroutable addresses.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
)

var once sync.Once

var testDefaults = map[string]string{
	"GOTENBERG_URL": "http://127.0.0.1:0",
	"REDIS_ADDR":    "127.0.0.1:0",
}

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv(app.TestModeEnv, "1")
		for key, value := range testDefaults {
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, value)
			}
		}
		app.RefreshTestMode()
	})
}

func init() {
	ensureTestMode()
}

// TestMain runs m with test mode enabled.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
