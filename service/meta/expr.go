package meta

import (
	"os"
	"strings"
	"unicode"
)

const envPrefix = "${env."

// lookupEnv resolves environment variables; tests may replace it.
var lookupEnv = os.Getenv

// expandEnvExpr replaces every ${env.KEY} in value with the variable KEY, or
// "" when unset. A key with characters other than letters, digits and '_'
// leaves the prefix as literal text and scanning resumes right after it; a
// prefix without a closing brace leaves the remainder untouched.
func expandEnvExpr(value string) string {
	var b strings.Builder
	rest := value
	for {
		idx := strings.Index(rest, envPrefix)
		if idx < 0 {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:idx])
		after := rest[idx+len(envPrefix):]
		end := strings.IndexByte(after, '}')
		if end < 0 {
			b.WriteString(rest[idx:])
			return b.String()
		}
		key := after[:end]
		if !isEnvKey(key) {
			b.WriteString(envPrefix)
			rest = after
			continue
		}
		b.WriteString(lookupEnv(key))
		rest = after[end+1:]
	}
}

func isEnvKey(key string) bool {
	for _, r := range key {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			return false
		}
	}
	return true
}
