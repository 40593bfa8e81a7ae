package sqlagent

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnsafeSQL marks a statement rejected by the safety checks.
var ErrUnsafeSQL = errors.New("unsafe sql")

var (
	thinkRe     = regexp.MustCompile(`(?s)<think>.*?</think>`)
	selectRe    = regexp.MustCompile(`(?is)(SELECT\s+.+?)(?:;|$)`)
	genderValRe = regexp.MustCompile(`(?i)gioi_tinh\s*=\s*'[^']*'`)
	regionValRe = regexp.MustCompile(`(?i)khu_vuc\s*=\s*'[^']*'`)
)

// forbiddenKeywords reject anything but plain reads. The comment markers
// block injection via trailing comments.
var forbiddenKeywords = []string{
	"DROP", "DELETE", "UPDATE", "INSERT", "ALTER",
	"TRUNCATE", "CREATE", "GRANT", "REVOKE", "--", "/*",
}

// ExtractSQL pulls the SQL statement out of a model response: thinking
// tags and markdown fences are stripped, then the first SELECT body up to
// a semicolon or end of text is taken.
func ExtractSQL(response string) string {
	response = strings.TrimSpace(thinkRe.ReplaceAllString(strings.TrimSpace(response), ""))

	response = strings.TrimPrefix(response, "```sql")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")

	if m := selectRe.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1]) + ";"
	}
	return strings.TrimSpace(response)
}

// FixValues overrides the model's gender and region literals with the
// values extracted from the question. The extraction is more reliable
// than the model on these two enums.
func FixValues(sql, gender, region string) string {
	if gender != "" {
		sql = genderValRe.ReplaceAllString(sql, "gioi_tinh = '"+gender+"'")
	}
	if region != "" {
		sql = regionValRe.ReplaceAllString(sql, "khu_vuc = '"+region+"'")
	}
	return sql
}

// Validate applies the keyword blocklist and the SELECT-only rule.
func Validate(sql string) error {
	upper := strings.ToUpper(sql)
	for _, kw := range forbiddenKeywords {
		if strings.Contains(upper, kw) {
			return fmt.Errorf("%w: forbidden keyword %q", ErrUnsafeSQL, kw)
		}
	}
	if !strings.HasPrefix(strings.TrimSpace(upper), "SELECT") {
		return fmt.Errorf("%w: query must start with SELECT", ErrUnsafeSQL)
	}
	return nil
}

// EnsureLimit appends LIMIT 50 when the statement has no LIMIT clause,
// and guarantees a trailing semicolon.
func EnsureLimit(sql string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(sql), ";")
	if !strings.Contains(strings.ToUpper(trimmed), "LIMIT") {
		trimmed += " LIMIT 50"
	}
	return trimmed + ";"
}
