package app

import "os"

const testModeEnv = "AEGLE_TEST_MODE"

// InTestMode reports whether the binaries should skip runtime startup. Set by
// tests that execute the compiled commands.
func InTestMode() bool {
	return os.Getenv(testModeEnv) == "1"
}
