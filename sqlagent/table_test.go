package sqlagent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoreRow(nam int64, truong, nganh, khoi string, diem float64, chiTieu int64) map[string]any {
	return map[string]any{
		"nam":        nam,
		"ten_truong": truong,
		"ten_nganh":  nganh,
		"ma_khoi":    khoi,
		"gioi_tinh":  "nam",
		"khu_vuc":    "mien_bac",
		"diem_chuan": diem,
		"chi_tieu":   chiTieu,
		"ghi_chu":    nil,
	}
}

func TestBuildMarkdownTableMergesKhoi(t *testing.T) {
	rows := []map[string]any{
		scoreRow(2024, "Học viện Kỹ thuật Quân sự", "Công nghệ thông tin", "A00", 26.5, 50),
		scoreRow(2024, "Học viện Kỹ thuật Quân sự", "Công nghệ thông tin", "A01", 26.5, 50),
	}
	table := BuildMarkdownTable(rows)

	lines := strings.Split(table, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "| Năm | Trường | Ngành | Khối | Giới tính | Khu vực | Điểm chuẩn | Chỉ tiêu |", lines[0])
	assert.Contains(t, lines[2], "A00, A01")
	assert.Contains(t, lines[2], "26.5")
}

func TestBuildMarkdownTableDeterministic(t *testing.T) {
	a := scoreRow(2023, "Học viện Hải quân", "Hàng hải", "A00", 24, 30)
	b := scoreRow(2024, "Học viện Hải quân", "Hàng hải", "A00", 25.25, 35)
	c := scoreRow(2024, "Học viện Hải quân", "Hàng hải", "A01", 25.25, 35)

	first := BuildMarkdownTable([]map[string]any{a, b, c})
	second := BuildMarkdownTable([]map[string]any{c, a, b})
	assert.Equal(t, first, second)

	// Years sort numerically ascending.
	assert.Less(t, strings.Index(first, "2023"), strings.Index(first, "2024"))
}

func TestBuildMarkdownTableOmitsEmptyColumns(t *testing.T) {
	rows := []map[string]any{
		{
			"nam":        int64(2024),
			"ten_truong": "Học viện Quân y",
			"ten_nganh":  "Bác sĩ đa khoa",
			"diem_chuan": 27.0,
		},
	}
	table := BuildMarkdownTable(rows)
	assert.Equal(t, "| Năm | Trường | Ngành | Điểm chuẩn |", strings.Split(table, "\n")[0])
	assert.NotContains(t, table, "Ghi chú")
	assert.NotContains(t, table, "Khối")
}

func TestBuildMarkdownTableEmpty(t *testing.T) {
	assert.Empty(t, BuildMarkdownTable(nil))
}

func TestFormatValueTypes(t *testing.T) {
	assert.Equal(t, "26.5", formatValue(26.5))
	assert.Equal(t, "27", formatValue(float64(27)))
	assert.Equal(t, "50", formatValue(int64(50)))
	assert.Equal(t, "HVKTQS", formatValue([]byte("HVKTQS")))
	assert.Equal(t, "", formatValue(nil))
}
