package featureflags

import (
	"os"
	"strings"
)

// envPrefix namespaces flag variables, e.g. FLAG_SIMULATED_WEATHER.
const envPrefix = "FLAG_"

// Enabled reports whether the named flag is switched on through the
// environment. Truthy spellings are 1, true, yes and on.
func Enabled(name string) bool {
	switch strings.ToLower(os.Getenv(envPrefix + strings.ToUpper(name))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
