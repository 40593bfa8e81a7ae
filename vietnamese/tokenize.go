package vietnamese

import (
	"regexp"
	"strings"
)

// Stopwords is the fixed Vietnamese stop-word set used by the sparse index.
// Both documents and queries are filtered through it identically.
var Stopwords = map[string]struct{}{
	"và": {}, "của": {}, "là": {}, "có": {}, "trong": {}, "cho": {}, "được": {}, "với": {}, "này": {}, "đó": {},
	"các": {}, "một": {}, "những": {}, "không": {}, "theo": {}, "về": {}, "tại": {}, "từ": {}, "đến": {},
	"khi": {}, "để": {}, "do": {}, "bởi": {}, "hoặc": {}, "hay": {}, "cũng": {}, "đã": {}, "sẽ": {},
	"đang": {}, "rồi": {}, "mà": {}, "thì": {}, "nếu": {}, "vì": {}, "nên": {}, "nhưng": {}, "tuy": {},
	"dù": {}, "song": {}, "lại": {}, "còn": {}, "đều": {}, "rất": {}, "quá": {}, "lắm": {}, "hơn": {},
	"nhất": {}, "bị": {}, "ra": {}, "vào": {}, "lên": {}, "xuống": {}, "trên": {}, "dưới": {}, "giữa": {},
	"sau": {}, "trước": {}, "ngoài": {}, "gì": {}, "ai": {}, "nào": {}, "đâu": {}, "sao": {}, "thế": {},
	"bao": {}, "mấy": {}, "như": {}, "mới": {}, "vừa": {}, "chỉ": {}, "cùng": {},
	"hết": {}, "luôn": {}, "ngay": {}, "chưa": {}, "vẫn": {}, "phải": {},
}

// nonTokenRe strips everything that is not a word character, whitespace, or
// an accented Vietnamese letter.
var nonTokenRe = regexp.MustCompile(`[^\w\sàáảãạăắằẳẵặâấầẩẫậèéẻẽẹêếềểễệìíỉĩịòóỏõọôốồổỗộơớờởỡợùúủũụưứừửữựỳýỷỹỵđ]`)

// Tokenize lowercases, strips punctuation, splits on whitespace, and drops
// stop-words and single-character tokens.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	text = nonTokenRe.ReplaceAllString(text, " ")
	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, t := range fields {
		if _, stop := Stopwords[t]; stop {
			continue
		}
		if len([]rune(t)) <= 1 {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// TokenSet returns the unique tokens of a text as a set.
func TokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range Tokenize(text) {
		set[t] = struct{}{}
	}
	return set
}

// Jaccard computes the Jaccard similarity of two token sets.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
