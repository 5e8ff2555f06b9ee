// Package safety holds the kill switch and payload redaction.
package safety

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var sensitiveKeys = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"api_key",
	"apikey",
	"auth",
	"authorization",
	"cookie",
	"set-cookie",
	"session",
	"private_key",
	"access_key",
	"refresh_token",
}

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`AIza[0-9A-Za-z\-_]{30,}`),
	regexp.MustCompile(`xox[baprs]-[a-zA-Z0-9-]{10,}`),
	regexp.MustCompile(`ya29\.[0-9A-Za-z\-_]+`),
	regexp.MustCompile(`ghp_[A-Za-z0-9]{20,}`),
}

var phiPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	regexp.MustCompile(`\b\d{9}\b`),
	regexp.MustCompile(`(?i)\bMRN[:\s-]*\d{5,}\b`),
	regexp.MustCompile(`(?i)\bDOB[:\s-]*\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`),
	regexp.MustCompile(`(?i)\bSSN[:\s-]*\d{3}-\d{2}-\d{4}\b`),
}

func hashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])[:12]
}

// RedactString replaces secret-looking substrings with a short hash so that
// equal secrets stay correlatable.
func RedactString(value string) string {
	out := value
	for _, re := range secretPatterns {
		out = re.ReplaceAllStringFunc(out, redactMatch)
	}
	for _, re := range phiPatterns {
		out = re.ReplaceAllStringFunc(out, redactMatch)
	}
	return out
}

func redactMatch(match string) string {
	return "[redacted:" + hashToken(match) + "]"
}

// ContainsSecret reports whether value looks like it carries a credential.
func ContainsSecret(value string) bool {
	for _, re := range secretPatterns {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}

// RedactPayload returns a redacted deep copy of payload. Values under
// sensitive keys are replaced wholesale.
func RedactPayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	return redactValue(payload).(map[string]any)
}

func redactValue(value any) any {
	switch v := value.(type) {
	case string:
		return RedactString(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			if isSensitiveKey(key) {
				out[key] = "[redacted]"
				continue
			}
			out[key] = redactValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = redactValue(item)
		}
		return out
	}
	return value
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range sensitiveKeys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
