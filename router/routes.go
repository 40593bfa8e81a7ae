package router

// DefaultRoutes returns the built-in route set for the admission chatbot,
// used when no intents file is configured.
func DefaultRoutes() []Route {
	return []Route{
		{
			Name:        "score_lookup",
			Description: "Tra cứu điểm chuẩn, chỉ tiêu tuyển sinh",
			Examples: []string{
				"Điểm chuẩn Học viện Kỹ thuật Quân sự năm 2024",
				"Điểm chuẩn năm nay là bao nhiêu",
				"Với 25 điểm khối A có vào được không",
				"Trường nào điểm thấp nhất",
				"So sánh điểm chuẩn 2023 và 2024",
				"Chỉ tiêu tuyển sinh năm nay",
				"Điểm sàn các trường quân đội",
				"Học viện Quân y lấy bao nhiêu điểm",
				"Điểm chuẩn ngành công nghệ thông tin",
				"25 điểm vào được trường nào",
			},
		},
		{
			Name:        "regulation",
			Description: "Hỏi về quy định, tiêu chuẩn, điều kiện, thủ tục tuyển sinh",
			Examples: []string{
				"Tiêu chuẩn sức khỏe để thi vào quân đội",
				"Điều kiện đăng ký xét tuyển",
				"Yêu cầu về chính trị như thế nào",
				"Quy trình đăng ký xét tuyển",
				"Hồ sơ cần những gì",
				"Độ tuổi được đăng ký là bao nhiêu",
				"Chiều cao tối thiểu là bao nhiêu",
				"Có cần khám sức khỏe không",
				"Tiêu chuẩn về mắt như thế nào",
				"Quy định về đối tượng ưu tiên",
				"Thí sinh đã đăng ký sơ tuyển có phải đăng ký dự thi tốt nghiệp THPT không",
				"Quy trình sơ tuyển như thế nào",
				"Thủ tục nhập học ra sao",
				"Đối tượng nào được ưu tiên xét tuyển",
				"Khu vực tuyển sinh được quy định thế nào",
				"Thí sinh nữ có được đăng ký không",
				"Có cần xác nhận lý lịch không",
				"Điều kiện về học lực thế nào",
				"Quy định về cộng điểm ưu tiên",
				"Khám sức khỏe sơ tuyển gồm những gì",
				"Các trường quân đội sử dụng tổ hợp xét tuyển nào",
				"Tổ hợp môn thi vào trường quân đội",
				"Xét tuyển theo khối nào",
				"Nguyên tắc tuyển sinh quân sự",
			},
		},
		{
			Name:        "faq",
			Description: "Câu hỏi thường gặp về đời sống, chế độ, chính sách trong quân đội",
			Examples: []string{
				"Học quân đội có được miễn học phí không",
				"Ra trường được phân công ở đâu",
				"Có được về thăm nhà không",
				"Lương học viên là bao nhiêu",
				"Học bao lâu thì ra trường",
				"Có được dùng điện thoại không",
				"Ngành nào dễ xin việc nhất",
				"Nữ có được thi vào không",
				"Cận thị có được thi không",
				"Có hình xăm có được thi không",
			},
		},
		{
			Name:        "greeting",
			Description: "Chào hỏi, cảm ơn, tạm biệt",
			Examples: []string{
				"Xin chào",
				"Chào bạn",
				"Hello",
				"Hi",
				"Cảm ơn bạn",
				"Thanks",
				"Tạm biệt",
				"Bye",
				"Bạn là ai",
				"Bạn có thể giúp gì",
			},
		},
		{
			Name:        "comparison",
			Description: "So sánh các trường, ngành học",
			Examples: []string{
				"So sánh Học viện KTQS và Học viện Quân y",
				"Trường nào tốt nhất",
				"Ngành nào có tương lai",
				"Nên chọn trường nào",
				"So sánh điểm các trường",
				"Trường nào khó vào nhất",
			},
		},
		{
			Name:        "school_info",
			Description: "Giới thiệu, thông tin tổng quan về trường",
			Examples: []string{
				"Giới thiệu về Học viện Kỹ thuật Quân sự",
				"Học viện Hải quân có những ngành gì",
				"Thông tin về Trường Sĩ quan Lục quân",
				"Cho tôi biết về Học viện Quân y",
				"Trường Sĩ quan Chính trị đào tạo gì",
				"Học viện Biên phòng ở đâu",
				"Mô tả về Học viện Phòng không Không quân",
				"Trường Sĩ quan Công binh là trường gì",
				"Giới thiệu trường quân đội",
				"Học viện Hậu cần có gì đặc biệt",
			},
		},
	}
}
