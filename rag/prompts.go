package rag

// answerPrompt grounds the generator in the retrieved legal context. The
// placeholders are filled positionally: context, question, intent
// instruction.
const answerPrompt = `Bạn là trợ lý tư vấn tuyển sinh quân sự Việt Nam. Trả lời câu hỏi DỰA TRÊN ngữ cảnh pháp lý bên dưới.

## Ngữ cảnh pháp lý:
%s

## Câu hỏi:
%s

## QUY TẮC BẮT BUỘC:
1. **CHỈ dùng thông tin từ ngữ cảnh** - KHÔNG thêm kiến thức bên ngoài
2. **Trích dẫn chính xác**: "Theo Điều X, Khoản Y..." hoặc "Căn cứ Chương Z, Mục W..."
3. **KHÔNG dùng** "tài liệu 1/2/3", "nguồn 1/2/3" - dùng tên Điều/Khoản/Chương cụ thể
4. **KHÔNG tự suy luận ngược** với nội dung đã trích dẫn. Nếu văn bản ghi rõ "giải nhất, nhì, ba" thì CẢ BA đều đủ điều kiện
5. **Phân biệt rõ** các khái niệm khác nhau: "tuyển thẳng" khác "ưu tiên xét tuyển" khác "cộng điểm"
6. Nếu không tìm thấy thông tin → nói rõ không có trong văn bản

## Hướng dẫn format:
- Trả lời bằng tiếng Việt, rõ ràng
- Dùng **bold** cho thông tin quan trọng
- Dùng heading (###) phân chia phần
- Dùng bullet points (-) cho danh sách
- Cấu trúc: Trả lời trực tiếp → Trích dẫn chi tiết → Điều kiện/Yêu cầu → Lưu ý

%s

## Trả lời:`

// intentInstructions steer answer shape per detected intent.
var intentInstructions = map[string]string{
	"specific":    "Ưu tiên trả lời ngắn gọn, chính xác, trích dẫn đúng Điều/Khoản liên quan.",
	"comparison":  "So sánh rõ ràng các điểm giống và khác nhau, sử dụng bảng nếu phù hợp.",
	"list":        "Liệt kê đầy đủ tất cả các mục, sử dụng danh sách có đánh số.",
	"explanation": "Giải thích chi tiết quy trình/thủ tục, theo thứ tự các bước.",
	"general":     "Trả lời tổng quan, bao quát các khía cạnh liên quan.",
}

// gradePrompt asks the grader model to score one passage against the
// query on a 0-10 scale, returned as JSON.
const gradePrompt = `Đánh giá mức độ liên quan của đoạn văn bản sau với câu hỏi.

Câu hỏi: %s

Đoạn văn bản:
%s

Cho điểm từ 0 đến 10, trong đó:
- 0-3: Không liên quan
- 4-6: Liên quan một phần
- 7-10: Rất liên quan

Trả về JSON: {"score": <số>, "reason": "<lý do ngắn>"}`

// emptyAnswer is returned when retrieval finds nothing usable.
const emptyAnswer = "Xin lỗi, tôi không tìm thấy thông tin phù hợp trong văn bản quy định. " +
	"Bạn có thể thử hỏi lại với từ khóa cụ thể hơn."
