package vietnamese

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"diacritics folded", "Học viện Kỹ thuật Quân sự", "hoc vien ky thuat quan su"},
		{"whitespace collapsed", "  điểm   chuẩn  ", "diem chuan"},
		{"already plain", "diem chuan 2024", "diem chuan 2024"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestExpandAbbreviations(t *testing.T) {
	out := ExpandAbbreviations("Điểm chuẩn HVKTQS 2024")
	assert.Contains(t, out, "học viện kỹ thuật quân sự")

	// Word boundaries: "sq" inside another word stays untouched
	out = ExpandAbbreviations("squad")
	assert.Equal(t, "squad", out)

	// Compound alias wins over its suffix
	out = ExpandAbbreviations("truong sq thông tin")
	assert.Contains(t, out, "trường sĩ quan")
}

func TestExtractYear(t *testing.T) {
	assert.Equal(t, 2024, ExtractYear("điểm chuẩn năm 2024"))
	assert.Equal(t, 2024, ExtractYear("điểm chuẩn năm 24"))
	assert.Equal(t, 1999, ExtractYear("nam 99"))
	assert.Equal(t, 0, ExtractYear("điểm chuẩn qua các năm"))
}

func TestExtractScore(t *testing.T) {
	assert.InDelta(t, 26.5, ExtractScore("Tôi được 26.5 điểm có đỗ không"), 1e-9)
	assert.InDelta(t, 25.75, ExtractScore("25,75 điểm"), 1e-9)
	assert.InDelta(t, 27.0, ExtractScore("mình được 27 thì sao"), 1e-9)
	assert.Negative(t, ExtractScore("điểm chuẩn là bao nhiêu"))
	// Out of range values are not scores
	assert.Negative(t, ExtractScore("99 điểm"))
}

func TestExtractKhoiThi(t *testing.T) {
	assert.Equal(t, "A00", ExtractKhoiThi("khối A00 lấy bao nhiêu"))
	assert.Equal(t, "D01", ExtractKhoiThi("điểm d01"))
	assert.Equal(t, "A00", ExtractKhoiThi("khối a lấy bao nhiêu điểm"))
	assert.Equal(t, "", ExtractKhoiThi("điểm chuẩn 2024"))
}

func TestExtractGender(t *testing.T) {
	assert.Equal(t, "nu", ExtractGender("Điểm chuẩn nữ Học viện Kỹ thuật Quân sự"))
	assert.Equal(t, "nam", ExtractGender("chỉ tiêu thí sinh nam"))
	// "năm 2024" must not be read as the male gender
	assert.Equal(t, "", ExtractGender("Điểm chuẩn năm 2024"))
}

func TestExtractRegion(t *testing.T) {
	assert.Equal(t, "mien_bac", ExtractRegion("thí sinh miền Bắc"))
	assert.Equal(t, "mien_nam", ExtractRegion("khu vực miền nam"))
	assert.Equal(t, "", ExtractRegion("điểm chuẩn 2024"))
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("Điểm chuẩn của Học viện, năm 2024!")
	require.NotEmpty(t, tokens)
	for _, tok := range tokens {
		_, stop := Stopwords[tok]
		assert.False(t, stop, "stop-word %q leaked into tokens", tok)
		assert.Greater(t, len([]rune(tok)), 1)
	}
	// "của" is a stop-word and must be gone
	assert.NotContains(t, tokens, "của")
	assert.Contains(t, tokens, "điểm")
}

func TestTokenizeIdempotentUnderNormalize(t *testing.T) {
	text := "Tiêu chuẩn sức khỏe để thi vào quân đội"
	once := Tokenize(text)
	joined := ""
	for i, tok := range once {
		if i > 0 {
			joined += " "
		}
		joined += tok
	}
	assert.Equal(t, once, Tokenize(joined))
}

func TestJaccard(t *testing.T) {
	a := TokenSet("điểm chuẩn học viện kỹ thuật")
	b := TokenSet("điểm chuẩn học viện kỹ thuật")
	assert.InDelta(t, 1.0, Jaccard(a, b), 1e-9)

	c := TokenSet("tiêu chuẩn sức khỏe")
	assert.Less(t, Jaccard(a, c), 0.5)
	assert.Zero(t, Jaccard(a, map[string]struct{}{}))
}
