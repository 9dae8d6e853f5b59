// Package redact removes credentials and other sensitive values from strings
// before they are logged or stored as a task's failure message. Provider SDK
// errors can echo API keys, presigned URLs and connection strings verbatim.
package redact

import "regexp"

// Placeholders substituted for redacted values.
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedTokenPlaceholder      = "[REDACTED_TOKEN]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
	RedactedEmailPlaceholder      = "[REDACTED_EMAIL]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Rules run in order; earlier rules may consume text later rules would match.
var rules = []rule{
	{
		regexp.MustCompile(`(?i)\b(postgres(?:ql)?|mysql|mongodb(?:\+srv)?)://[^@\s]+@`),
		"$1://" + RedactedCredentialPlaceholder + "@",
	},
	{
		regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9_\-.~+/=]+`),
		"Bearer " + RedactedTokenPlaceholder,
	},
	{
		regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),
		RedactedJWTPlaceholder,
	},
	// OpenAI keys
	{regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{16,}`), RedactedKeyPlaceholder},
	// Google API keys
	{regexp.MustCompile(`\bAIza[0-9A-Za-z_-]{20,}`), RedactedKeyPlaceholder},
	// AWS access key ids
	{regexp.MustCompile(`\b(?:AKIA|ASIA)[A-Z0-9]{16}\b`), RedactedKeyPlaceholder},
	// Presigned URL query parameters
	{
		regexp.MustCompile(`(?i)(X-Amz-(?:Signature|Credential|Security-Token))=[^&\s]+`),
		"$1=" + RedactionPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)\b(api[_-]?key|token|secret|password|passwd)(\s*[=:]\s*)['"]?[^'"&\s]{3,}['"]?`),
		"$1$2" + RedactionPlaceholder,
	},
	{
		regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		RedactedEmailPlaceholder,
	},
	// Absolute filesystem paths; paths inside URLs are left alone
	{regexp.MustCompile(`(^|\s)(/[\w.-]+){2,}`), "$1" + RedactedPathPlaceholder},
}

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.replacement)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
