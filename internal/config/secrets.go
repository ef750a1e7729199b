package config

import (
	"fmt"
	"strings"
	"unicode"
)

// minProductionSecretLength applies to database and Redis passwords in production
const minProductionSecretLength = 12

// Values that show up in sample configs and compose files
var placeholderSecrets = []string{
	"changeme",
	"password",
	"postgres",
	"secret",
	"evolver",
	"redis",
	"example",
	"default",
	"test",
}

// CheckSecret returns the problems found with a secret. An empty slice means
// the secret is acceptable for production.
func CheckSecret(secret, name string, minLength int) []string {
	if secret == "" {
		return []string{fmt.Sprintf("%s cannot be empty", name)}
	}

	lower := strings.ToLower(secret)
	for _, placeholder := range placeholderSecrets {
		if strings.Contains(lower, placeholder) {
			return []string{fmt.Sprintf("%s appears to be a placeholder value (%s)", name, placeholder)}
		}
	}

	var problems []string
	if len(secret) < minLength {
		problems = append(problems, fmt.Sprintf("%s must be at least %d characters (got %d)", name, minLength, len(secret)))
	}
	if classes := characterClasses(secret); classes < 3 {
		problems = append(problems, fmt.Sprintf("%s must mix at least 3 of: uppercase, lowercase, digits, symbols (got %d)", name, classes))
	}
	return problems
}

func characterClasses(s string) int {
	var upper, lower, digit, special bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}

	n := 0
	for _, ok := range []bool{upper, lower, digit, special} {
		if ok {
			n++
		}
	}
	return n
}

// ValidateProductionSecrets checks the passwords of every backend the
// configuration actually uses
func ValidateProductionSecrets(cfg *Config) ValidationErrors {
	var errs ValidationErrors

	if cfg.NeedsDatabase() {
		for _, msg := range CheckSecret(cfg.Database.Password, "Database password", minProductionSecretLength) {
			errs = append(errs, ValidationError{Field: "database.password", Message: msg})
		}
	}

	// Redis without AUTH is a deployment choice; only judge a password that is set
	if cfg.NeedsRedis() && cfg.Redis.Password != "" {
		for _, msg := range CheckSecret(cfg.Redis.Password, "Redis password", minProductionSecretLength) {
			errs = append(errs, ValidationError{Field: "redis.password", Message: msg})
		}
	}

	return errs
}
