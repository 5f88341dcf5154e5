package env

import (
	"os"
	"strings"

	"github.com/ekisa-team/mapbridge/internal/envvar"
)

// Environment is the deployment environment of the process.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
	Test        Environment = "test"
)

// FromEnv reads MAPBRIDGE_ENV. Unknown or empty values mean development.
func FromEnv() Environment {
	return Parse(os.Getenv(envvar.MapbridgeEnv))
}

// Parse maps a string to an Environment.
func Parse(s string) Environment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prod", "production":
		return Production
	case "test":
		return Test
	default:
		return Development
	}
}

// IsProduction reports whether e is production.
func (e Environment) IsProduction() bool {
	return e == Production
}
