package config

import (
	"os"
	"regexp"
	"strconv"

	"github.com/joho/godotenv"
)

var (
	envVarDefaultPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*):-([^}]*)\}`)
	envVarBracedPattern  = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	envVarBarePattern    = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// expandEnvVars resolves ${VAR:-default}, then ${VAR}, then $VAR
// references against the process environment, in that order.
func expandEnvVars(s string) string {
	s = envVarDefaultPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarDefaultPattern.FindStringSubmatch(match)
		if v, ok := os.LookupEnv(parts[1]); ok && v != "" {
			return v
		}
		return parts[2]
	})
	s = envVarBracedPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarBracedPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
	s = envVarBarePattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarBarePattern.FindStringSubmatch(match)[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return match
	})
	return s
}

// parseValue converts an expanded string scalar to bool/int/float where it
// unambiguously parses as one, leaving everything else as a string. This
// lets YAML values like `demo_mode: ${DCCP_DEMO_MODE:-true}` resolve to a
// real bool after expansion instead of staying the literal string "true".
func parseValue(value string) interface{} {
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

// ExpandEnvVarsInData walks a decoded YAML document (maps, slices, and
// scalars as produced by yaml.v3 into interface{}) and expands environment
// references in every string found, recursively.
func ExpandEnvVarsInData(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[k] = ExpandEnvVarsInData(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = ExpandEnvVarsInData(val)
		}
		return out
	case string:
		expanded := expandEnvVars(v)
		if expanded != v {
			return parseValue(expanded)
		}
		return v
	default:
		return v
	}
}

// LoadEnvFiles loads .env.local then .env into the process environment,
// without overriding variables already set. Missing files are not an error.
func LoadEnvFiles() error {
	for _, name := range []string{".env.local", ".env"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return err
		}
	}
	return nil
}
