// Package vietnamese provides text normalization and entity extraction
// helpers for Vietnamese admissions and legal queries: diacritic folding,
// abbreviation expansion, and extractors for years, scores, exam groups,
// gender and region.
package vietnamese

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// diacritics maps accented Vietnamese characters to their base letters.
var diacritics = map[rune]rune{
	'à': 'a', 'á': 'a', 'ả': 'a', 'ã': 'a', 'ạ': 'a',
	'ă': 'a', 'ằ': 'a', 'ắ': 'a', 'ẳ': 'a', 'ẵ': 'a', 'ặ': 'a',
	'â': 'a', 'ầ': 'a', 'ấ': 'a', 'ẩ': 'a', 'ẫ': 'a', 'ậ': 'a',
	'đ': 'd',
	'è': 'e', 'é': 'e', 'ẻ': 'e', 'ẽ': 'e', 'ẹ': 'e',
	'ê': 'e', 'ề': 'e', 'ế': 'e', 'ể': 'e', 'ễ': 'e', 'ệ': 'e',
	'ì': 'i', 'í': 'i', 'ỉ': 'i', 'ĩ': 'i', 'ị': 'i',
	'ò': 'o', 'ó': 'o', 'ỏ': 'o', 'õ': 'o', 'ọ': 'o',
	'ô': 'o', 'ồ': 'o', 'ố': 'o', 'ổ': 'o', 'ỗ': 'o', 'ộ': 'o',
	'ơ': 'o', 'ờ': 'o', 'ớ': 'o', 'ở': 'o', 'ỡ': 'o', 'ợ': 'o',
	'ù': 'u', 'ú': 'u', 'ủ': 'u', 'ũ': 'u', 'ụ': 'u',
	'ư': 'u', 'ừ': 'u', 'ứ': 'u', 'ử': 'u', 'ữ': 'u', 'ự': 'u',
	'ỳ': 'y', 'ý': 'y', 'ỷ': 'y', 'ỹ': 'y', 'ỵ': 'y',
	'À': 'A', 'Á': 'A', 'Ả': 'A', 'Ã': 'A', 'Ạ': 'A',
	'Ă': 'A', 'Ằ': 'A', 'Ắ': 'A', 'Ẳ': 'A', 'Ẵ': 'A', 'Ặ': 'A',
	'Â': 'A', 'Ầ': 'A', 'Ấ': 'A', 'Ẩ': 'A', 'Ẫ': 'A', 'Ậ': 'A',
	'Đ': 'D',
	'È': 'E', 'É': 'E', 'Ẻ': 'E', 'Ẽ': 'E', 'Ẹ': 'E',
	'Ê': 'E', 'Ề': 'E', 'Ế': 'E', 'Ể': 'E', 'Ễ': 'E', 'Ệ': 'E',
	'Ì': 'I', 'Í': 'I', 'Ỉ': 'I', 'Ĩ': 'I', 'Ị': 'I',
	'Ò': 'O', 'Ó': 'O', 'Ỏ': 'O', 'Õ': 'O', 'Ọ': 'O',
	'Ô': 'O', 'Ồ': 'O', 'Ố': 'O', 'Ổ': 'O', 'Ỗ': 'O', 'Ộ': 'O',
	'Ơ': 'O', 'Ờ': 'O', 'Ớ': 'O', 'Ở': 'O', 'Ỡ': 'O', 'Ợ': 'O',
	'Ù': 'U', 'Ú': 'U', 'Ủ': 'U', 'Ũ': 'U', 'Ụ': 'U',
	'Ư': 'U', 'Ừ': 'U', 'Ứ': 'U', 'Ử': 'U', 'Ữ': 'U', 'Ự': 'U',
	'Ỳ': 'Y', 'Ý': 'Y', 'Ỷ': 'Y', 'Ỹ': 'Y', 'Ỵ': 'Y',
}

// SchoolAliases maps common military academy abbreviations to their full
// Vietnamese names. Expansion happens at word boundaries before
// normalization.
var SchoolAliases = map[string]string{
	"hvktqs":    "học viện kỹ thuật quân sự",
	"hvqs":      "học viện quân sự",
	"hvqy":      "học viện quân y",
	"hvbc":      "học viện biên chống",
	"hvpkkq":    "học viện phòng không không quân",
	"ktqs":      "kỹ thuật quân sự",
	"truong sq": "trường sĩ quan",
	"sq":        "sĩ quan",
	"cb":        "công binh",
	"tt":        "thông tin",
	"pkkq":      "phòng không không quân",
	"hq":        "hải quân",
	"bca":       "bộ công an",
	"ca":        "công an",
	"qđ":        "quân đội",
	"qs":        "quân sự",
}

// RemoveDiacritics folds accented Vietnamese characters to their base form.
func RemoveDiacritics(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if base, ok := diacritics[r]; ok {
			b.WriteRune(base)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize produces the canonical unaccented lowercase form used for
// search and comparison: NFC, diacritic fold, lowercase, collapsed
// whitespace.
func Normalize(text string) string {
	text = norm.NFC.String(text)
	text = RemoveDiacritics(text)
	text = strings.ToLower(text)
	return strings.Join(strings.Fields(text), " ")
}

// aliasPatterns are compiled once, longest alias first so that compound
// abbreviations (truong sq) win over their parts (sq).
var aliasPatterns = buildAliasPatterns()

type aliasPattern struct {
	re   *regexp.Regexp
	full string
}

func buildAliasPatterns() []aliasPattern {
	keys := make([]string, 0, len(SchoolAliases))
	for k := range SchoolAliases {
		keys = append(keys, k)
	}
	// Longest first
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			if len(keys[j]) > len(keys[i]) {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	patterns := make([]aliasPattern, 0, len(keys))
	for _, k := range keys {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(k) + `\b`)
		patterns = append(patterns, aliasPattern{re: re, full: SchoolAliases[k]})
	}
	return patterns
}

// ExpandAbbreviations replaces known school abbreviations with their full
// names. The result is lowercase.
func ExpandAbbreviations(text string) string {
	out := strings.ToLower(text)
	for _, p := range aliasPatterns {
		out = p.re.ReplaceAllString(out, p.full)
	}
	return out
}

var (
	numberRe    = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	yearRe      = regexp.MustCompile(`\b(20[0-9]{2})\b`)
	shortYearRe = regexp.MustCompile(`\b(?:năm|nam)\s*(\d{2})\b`)
	khoiThiRe   = regexp.MustCompile(`\b([ABCD]\d{2})\b`)

	scoreRes = []*regexp.Regexp{
		regexp.MustCompile(`(\d{1,2}(?:[.,]\d+)?)\s*điểm`),
		regexp.MustCompile(`điểm\s*(?:là|:)?\s*(\d{1,2}(?:[.,]\d+)?)`),
		regexp.MustCompile(`(\d{1,2}(?:[.,]\d+)?)\s*(?:khối|block)`),
	}
)

// ExtractNumbers returns every number in the text, accepting both "." and
// "," as decimal separator.
func ExtractNumbers(text string) []float64 {
	matches := numberRe.FindAllString(text, -1)
	numbers := make([]float64, 0, len(matches))
	for _, m := range matches {
		m = strings.ReplaceAll(m, ",", ".")
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			numbers = append(numbers, v)
		}
	}
	return numbers
}

// ExtractYear finds a four digit year (20XX) or the short "năm NN" form.
// Returns 0 when no year is present.
func ExtractYear(text string) int {
	if m := yearRe.FindStringSubmatch(text); m != nil {
		y, _ := strconv.Atoi(m[1])
		return y
	}
	if m := shortYearRe.FindStringSubmatch(strings.ToLower(text)); m != nil {
		y, _ := strconv.Atoi(m[1])
		if y < 50 {
			return 2000 + y
		}
		return 1900 + y
	}
	return 0
}

// ExtractScore finds an admission score near "điểm" in the [0,30] range.
// Returns a negative value when no score is present.
func ExtractScore(text string) float64 {
	lower := strings.ToLower(text)
	for _, re := range scoreRes {
		if m := re.FindStringSubmatch(lower); m != nil {
			s := strings.ReplaceAll(m[1], ",", ".")
			if v, err := strconv.ParseFloat(s, 64); err == nil && v >= 0 && v <= 30 {
				return v
			}
		}
	}
	// Standalone numbers in a plausible score range
	for _, n := range ExtractNumbers(text) {
		if n >= 15 && n <= 30 {
			return n
		}
	}
	return -1
}

// khoiMapping resolves textual exam group descriptions to codes.
var khoiMapping = []struct {
	key  string
	code string
}{
	{"khối a", "A00"},
	{"khoi a", "A00"},
	{"khối b", "B00"},
	{"khoi b", "B00"},
	{"khối c", "C00"},
	{"khoi c", "C00"},
	{"khối d", "D01"},
	{"khoi d", "D01"},
}

// ExtractKhoiThi finds an exam subject group code (A00, D01, ...) or
// resolves a textual form like "khối a". Returns "" when absent.
func ExtractKhoiThi(text string) string {
	if m := khoiThiRe.FindStringSubmatch(strings.ToUpper(text)); m != nil {
		return m[1]
	}
	normalized := Normalize(text)
	for _, km := range khoiMapping {
		if strings.Contains(normalized, Normalize(km.key)) {
			return km.code
		}
	}
	return ""
}

var (
	femaleRe = regexp.MustCompile(`\bnu\b`)
	maleRe   = regexp.MustCompile(`\bnam giới\b|\bcon trai\b|\bthí sinh nam\b`)
)

// ExtractGender detects the queried gender, returning the view's lowercase
// token "nu" or "nam", or "" when unspecified. "nữ" is checked first since
// "nam" also appears inside "Việt Nam" and year phrases.
func ExtractGender(text string) string {
	lower := strings.ToLower(norm.NFC.String(text))
	if strings.Contains(lower, "nữ") || femaleRe.MatchString(Normalize(text)) {
		return "nu"
	}
	if maleRe.MatchString(lower) {
		return "nam"
	}
	return ""
}

// ExtractRegion detects the queried region, returning the view's token
// "mien_bac" or "mien_nam", or "" when unspecified.
func ExtractRegion(text string) string {
	normalized := Normalize(text)
	if strings.Contains(normalized, "mien bac") || strings.Contains(normalized, "phia bac") {
		return "mien_bac"
	}
	if strings.Contains(normalized, "mien nam") || strings.Contains(normalized, "phia nam") {
		return "mien_nam"
	}
	return ""
}
