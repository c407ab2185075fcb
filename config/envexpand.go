package config

import (
	"os"
	"regexp"
)

// envRef matches ${VAR} and ${VAR:-default} references.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandEnv substitutes ${VAR} and ${VAR:-default} references with
// environment values. A set, non-empty variable wins; an unset or
// empty one falls back to the default when given, and to the empty
// string otherwise. Missing variables are not an error: optional
// settings simply stay unset and any truly required value fails
// validation downstream.
func ExpandEnv(input string) string {
	return envRef.ReplaceAllStringFunc(input, expandRef)
}

func expandRef(ref string) string {
	groups := envRef.FindStringSubmatch(ref)
	name, fallback := groups[1], groups[3]

	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}
