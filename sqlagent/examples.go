package sqlagent

// Example pairs a question with its reference SQL for few-shot prompting.
type Example struct {
	Question string
	SQL      string
	Score    float64
}

// DefaultExamples is the hardcoded fallback when the example collection
// is unreachable or returns nothing above the threshold.
func DefaultExamples() []Example {
	return []Example{
		{
			Question: "Điểm chuẩn Học viện Kỹ thuật Quân sự năm 2024?",
			SQL: `SELECT ten_truong, ten_nganh, ma_khoi, diem_chuan, chi_tieu
FROM view_tra_cuu_diem
WHERE ten_khong_dau LIKE '%hoc vien ky thuat quan su%' AND nam = 2024
ORDER BY ten_nganh, ma_khoi
LIMIT 50;`,
		},
		{
			Question: "Tôi thi được 26.5 điểm thì có đỗ Học viện Hải quân năm 2025 không?",
			SQL: `SELECT ten_truong, ten_nganh, ma_khoi, diem_chuan, chi_tieu, nam
FROM view_tra_cuu_diem
WHERE ten_khong_dau LIKE '%hoc vien hai quan%' AND nam = 2025
ORDER BY ten_nganh, ma_khoi
LIMIT 50;`,
		},
		{
			Question: "Với 25 điểm khối A, tôi có thể vào trường nào năm 2024?",
			SQL: `SELECT DISTINCT ten_truong, ten_nganh, ma_khoi, diem_chuan
FROM view_tra_cuu_diem
WHERE diem_chuan <= 25 AND nam = 2024
ORDER BY diem_chuan DESC
LIMIT 20;`,
		},
		{
			Question: "Điểm chuẩn nữ Học viện Quân y qua các năm?",
			SQL: `SELECT nam, ten_truong, ten_nganh, ma_khoi, diem_chuan, chi_tieu
FROM view_tra_cuu_diem
WHERE ten_khong_dau LIKE '%hoc vien quan y%' AND gioi_tinh = 'nu'
ORDER BY nam ASC, ten_nganh, ma_khoi
LIMIT 50;`,
		},
		{
			Question: "So sánh điểm chuẩn các trường năm 2023 và 2024?",
			SQL: `SELECT ten_truong, ten_nganh, ma_khoi,
    MAX(CASE WHEN nam = 2023 THEN diem_chuan END) as diem_2023,
    MAX(CASE WHEN nam = 2024 THEN diem_chuan END) as diem_2024
FROM view_tra_cuu_diem
WHERE nam IN (2023, 2024)
GROUP BY ten_truong, ten_nganh, ma_khoi
ORDER BY ten_truong, ten_nganh
LIMIT 50;`,
		},
	}
}
