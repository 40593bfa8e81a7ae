package sqlagent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{
			name:     "bare statement",
			response: "SELECT * FROM view_tra_cuu_diem",
			want:     "SELECT * FROM view_tra_cuu_diem;",
		},
		{
			name:     "sql fence",
			response: "```sql\nSELECT ten_truong FROM view_tra_cuu_diem;\n```",
			want:     "SELECT ten_truong FROM view_tra_cuu_diem;",
		},
		{
			name:     "plain fence",
			response: "```\nSELECT 1\n```",
			want:     "SELECT 1;",
		},
		{
			name:     "thinking tags",
			response: "<think>cần lọc theo năm\nvà trường</think>SELECT nam FROM view_tra_cuu_diem;",
			want:     "SELECT nam FROM view_tra_cuu_diem;",
		},
		{
			name:     "prose around the statement",
			response: "Đây là câu SQL: SELECT nam FROM view_tra_cuu_diem; Hy vọng giúp được bạn.",
			want:     "SELECT nam FROM view_tra_cuu_diem;",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractSQL(tt.response))
		})
	}
}

func TestFixValuesOverridesLiterals(t *testing.T) {
	sql := "SELECT * FROM view_tra_cuu_diem WHERE gioi_tinh = 'Nữ' AND khu_vuc = 'KV1'"
	fixed := FixValues(sql, "nu", "mien_bac")
	assert.Contains(t, fixed, "gioi_tinh = 'nu'")
	assert.Contains(t, fixed, "khu_vuc = 'mien_bac'")
}

func TestFixValuesLeavesSQLAloneWithoutEntities(t *testing.T) {
	sql := "SELECT * FROM view_tra_cuu_diem WHERE gioi_tinh = 'Nam'"
	assert.Equal(t, sql, FixValues(sql, "", ""))
}

func TestValidateRejectsForbiddenKeywords(t *testing.T) {
	bad := []string{
		"SELECT 1; DROP TABLE truong",
		"DELETE FROM view_tra_cuu_diem",
		"SELECT 1 -- comment",
		"SELECT 1 /* block */",
		"UPDATE truong SET active = false",
		"INSERT INTO truong VALUES (1)",
		"SELECT 1; TRUNCATE truong",
		"GRANT ALL ON truong TO public",
	}
	for _, sql := range bad {
		err := Validate(sql)
		require.Error(t, err, sql)
		assert.ErrorIs(t, err, ErrUnsafeSQL, sql)
	}
}

func TestValidateRequiresSelect(t *testing.T) {
	err := Validate("WITH x AS (SELECT 1) SELECT * FROM x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsafeSQL)

	assert.NoError(t, Validate("SELECT nam, diem_chuan FROM view_tra_cuu_diem WHERE nam = 2024;"))
}

func TestEnsureLimit(t *testing.T) {
	assert.Equal(t,
		"SELECT * FROM view_tra_cuu_diem LIMIT 50;",
		EnsureLimit("SELECT * FROM view_tra_cuu_diem;"))
	assert.Equal(t,
		"SELECT * FROM view_tra_cuu_diem LIMIT 20;",
		EnsureLimit("SELECT * FROM view_tra_cuu_diem LIMIT 20"))
}

func TestExtractEntities(t *testing.T) {
	e := ExtractEntities("Điểm chuẩn nữ khối A01 Học viện Kỹ thuật Quân sự năm 2024 miền Bắc")
	assert.Equal(t, 2024, e.Year)
	assert.Equal(t, "A01", e.KhoiThi)
	assert.Equal(t, "nu", e.Gender)
	assert.Equal(t, "mien_bac", e.Region)
	assert.NotEmpty(t, e.Normalized)
}
