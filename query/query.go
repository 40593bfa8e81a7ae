// Package query analyses questions with regex intent patterns, derives the
// adaptive context budget for the retrieval pipeline, and generates query
// variants for multi-query search.
package query

import (
	"regexp"
	"strings"
)

// Intents recognised by the analyser.
const (
	IntentSpecific    = "specific"
	IntentComparison  = "comparison"
	IntentList        = "list"
	IntentExplanation = "explanation"
	IntentGeneral     = "general"
)

// Analysis is the outcome of regex intent classification.
type Analysis struct {
	Intent     string
	Confidence float64
}

var intentPatterns = map[string][]*regexp.Regexp{
	IntentSpecific: compileAll(
		`(thời hạn|deadline|bao lâu|khi nào|ngày nào|thời gian)`,
		`(điều kiện|yêu cầu|quy định|tiêu chuẩn) (gì|nào|là gì)`,
		`(có cần|phải|bắt buộc|yêu cầu).*không`,
		`(địa chỉ|nơi|ở đâu|liên hệ)`,
		`(số lượng|bao nhiêu|mấy)`,
		`(điểm chuẩn|bao nhiêu điểm|lấy bao nhiêu)`,
	),
	IntentComparison: compileAll(
		`(khác nhau|khác biệt|so sánh|giống nhau)`,
		`(.*) và (.*) (khác|giống)`,
		`(chọn|lựa chọn).*(hay|hoặc)`,
		`(nên).*(hay).*`,
	),
	IntentList: compileAll(
		`(có những|bao gồm|gồm có|liệt kê|danh sách)`,
		`(các|những) (.*) (nào|gì)`,
		`(tất cả|toàn bộ|đầy đủ)`,
		`(danh mục|hệ thống)`,
	),
	IntentExplanation: compileAll(
		`(tại sao|vì sao|lý do|nguyên nhân)`,
		`(như thế nào|thế nào|cách nào|làm sao)`,
		`(giải thích|giải|mô tả|nói rõ)`,
		`(ý nghĩa|nghĩa là gì|có nghĩa)`,
		`(hướng dẫn|cách thức|thủ tục)`,
	),
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// Analyze classifies a query by counting matched patterns per intent.
// Confidence is matched/2 capped at 1; unmatched queries are "general"
// with confidence 0.5.
func Analyze(query string) Analysis {
	lower := strings.ToLower(query)

	bestIntent := ""
	bestScore := 0
	for _, intent := range []string{IntentSpecific, IntentComparison, IntentList, IntentExplanation} {
		score := 0
		for _, re := range intentPatterns[intent] {
			if re.MatchString(lower) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestIntent = intent
		}
	}

	if bestScore == 0 {
		return Analysis{Intent: IntentGeneral, Confidence: 0.5}
	}
	confidence := float64(bestScore) / 2
	if confidence > 1 {
		confidence = 1
	}
	return Analysis{Intent: bestIntent, Confidence: confidence}
}

// Budget caps how much hierarchy context a given intent may pull into the
// prompt.
type Budget struct {
	MaxChunks      int
	IncludeParents bool
	MaxDescendants int
	MaxSiblings    int
}

var budgets = map[string]Budget{
	IntentSpecific:    {MaxChunks: 3, IncludeParents: true, MaxDescendants: 2, MaxSiblings: 2},
	IntentComparison:  {MaxChunks: 4, IncludeParents: true, MaxDescendants: 1, MaxSiblings: 2},
	IntentList:        {MaxChunks: 5, IncludeParents: true, MaxDescendants: 3, MaxSiblings: 3},
	IntentExplanation: {MaxChunks: 4, IncludeParents: true, MaxDescendants: 2, MaxSiblings: 2},
	IntentGeneral:     {MaxChunks: 3, IncludeParents: true, MaxDescendants: 1, MaxSiblings: 1},
}

// BudgetFor returns the adaptive context budget for an intent.
func BudgetFor(intent string) Budget {
	if b, ok := budgets[intent]; ok {
		return b
	}
	return budgets[IntentGeneral]
}

// synonyms substitutes domain terms; one synonym per term to avoid
// variant explosion.
var synonyms = []struct {
	term string
	subs []string
}{
	{"học viện", []string{"trường", "cơ sở đào tạo"}},
	{"thi vào", []string{"tuyển sinh", "dự tuyển", "xét tuyển", "đăng ký"}},
	{"hồ sơ", []string{"giấy tờ", "thủ tục"}},
	{"sức khỏe", []string{"thể lực", "y tế"}},
	{"chính trị", []string{"lý lịch"}},
	{"điểm chuẩn", []string{"điểm trúng tuyển", "điểm xét tuyển", "mức điểm"}},
	{"ngành", []string{"chuyên ngành", "lĩnh vực"}},
}

// Expand generates up to three query variants: the original, a
// synonym-substituted form, and an intent-templated form. Duplicates are
// removed preserving order.
func Expand(query, intent string) []string {
	variations := []string{query}
	lower := strings.ToLower(query)

	for _, s := range synonyms {
		if strings.Contains(lower, s.term) {
			expanded := strings.ReplaceAll(lower, s.term, s.subs[0])
			variations = append(variations, expanded)
		}
	}

	switch intent {
	case IntentSpecific:
		if strings.Contains(lower, "thời hạn") {
			variations = append(variations, query+" quy định", "thời gian "+query)
		} else if strings.Contains(lower, "có thể") || strings.Contains(lower, "được không") || strings.Contains(lower, "có được") {
			variations = append(variations, "tiêu chuẩn "+query, "quy định "+query)
		}
	case IntentList:
		variations = append(variations, query+" bao gồm", "danh sách "+query)
	case IntentExplanation:
		variations = append(variations, "giải thích "+query, query+" như thế nào", "hướng dẫn "+query)
	}

	seen := make(map[string]struct{}, len(variations))
	unique := variations[:0]
	for _, v := range variations {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		unique = append(unique, v)
	}
	if len(unique) > 3 {
		unique = unique[:3]
	}
	return unique
}
