package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	tests := []struct {
		query  string
		intent string
	}{
		{"Điểm chuẩn Học viện Kỹ thuật Quân sự năm 2024", IntentSpecific},
		{"So sánh Học viện KTQS và Học viện Quân y", IntentComparison},
		{"Hồ sơ đăng ký bao gồm những gì", IntentList},
		{"Quy trình sơ tuyển như thế nào", IntentExplanation},
		{"thông tin tuyển sinh", IntentGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := Analyze(tt.query)
			assert.Equal(t, tt.intent, got.Intent)
			assert.Greater(t, got.Confidence, 0.0)
			assert.LessOrEqual(t, got.Confidence, 1.0)
		})
	}
}

func TestAnalyzeGeneralConfidence(t *testing.T) {
	got := Analyze("thông tin tuyển sinh")
	assert.Equal(t, IntentGeneral, got.Intent)
	assert.InDelta(t, 0.5, got.Confidence, 1e-9)
}

func TestBudgetFor(t *testing.T) {
	assert.Equal(t, 3, BudgetFor(IntentSpecific).MaxChunks)
	assert.Equal(t, 5, BudgetFor(IntentList).MaxChunks)
	assert.Equal(t, 3, BudgetFor(IntentList).MaxSiblings)
	// Unknown intents fall back to general
	assert.Equal(t, BudgetFor(IntentGeneral), BudgetFor("whatever"))
	assert.True(t, BudgetFor(IntentComparison).IncludeParents)
}

func TestExpand(t *testing.T) {
	variants := Expand("điểm chuẩn học viện quân y", IntentSpecific)
	require.NotEmpty(t, variants)
	assert.Equal(t, "điểm chuẩn học viện quân y", variants[0])
	assert.LessOrEqual(t, len(variants), 3)

	// Synonym substitution produced a variant
	found := false
	for _, v := range variants[1:] {
		if v != variants[0] {
			found = true
		}
	}
	assert.True(t, found)
}

func TestExpandDeduplicates(t *testing.T) {
	variants := Expand("xin chào", IntentGeneral)
	assert.Equal(t, []string{"xin chào"}, variants)

	seen := map[string]int{}
	for _, v := range Expand("hồ sơ cần những gì", IntentList) {
		seen[v]++
	}
	for v, n := range seen {
		assert.Equal(t, 1, n, v)
	}
}

func TestExpandListIntent(t *testing.T) {
	variants := Expand("các ngành đào tạo", IntentList)
	assert.Contains(t, variants, "các ngành đào tạo bao gồm")
	assert.LessOrEqual(t, len(variants), 3)
}
