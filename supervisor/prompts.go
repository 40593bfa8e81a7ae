package supervisor

// planningPrompt is the LLM fallback when semantic routing is unmatched.
// Placeholders: query, history.
const planningPrompt = `Bạn là Supervisor Agent điều phối hệ thống tư vấn tuyển sinh quân sự Việt Nam.

Phân tích câu hỏi của người dùng và quyết định cách xử lý:

1. **sql**: CHỈ cho câu hỏi cần TRA CỨU SỐ LIỆU cụ thể từ database
   - Điểm chuẩn cụ thể: "Điểm chuẩn Học viện KTQS năm 2024?"
   - So sánh điểm số: "So sánh điểm năm 2023 và 2024"
   - Kiểm tra điểm: "Với 25 điểm, tôi vào được trường nào?"
   - Chỉ tiêu tuyển sinh: "Chỉ tiêu năm nay bao nhiêu?"

2. **rag**: Cho câu hỏi về QUY ĐỊNH, TIÊU CHUẨN, THỦ TỤC, ĐIỀU KIỆN (tra cứu văn bản pháp lý)
   - Tiêu chuẩn sức khỏe, chính trị, học lực
   - Quy trình đăng ký, sơ tuyển, thi tuyển
   - Hồ sơ, thủ tục, điều kiện xét tuyển
   - Đối tượng ưu tiên, khu vực tuyển sinh
   - Tổ hợp môn thi, khối thi
   - Quy định về độ tuổi, giới tính
   - Bất kỳ câu hỏi nào liên quan đến luật, quy chế, thông tư

3. **school_info**: Cho câu hỏi giới thiệu, thông tin tổng quan về một trường cụ thể
   - "Giới thiệu về Học viện Kỹ thuật Quân sự"
   - "Học viện Hải quân có những ngành gì?"

4. **general**: CHỈ cho chào hỏi, cảm ơn, hỏi về bot
   - "Xin chào", "Cảm ơn", "Bạn là ai?"

5. **clarification**: Khi câu hỏi không rõ ràng

LƯU Ý QUAN TRỌNG:
- Nếu câu hỏi KHÔNG yêu cầu tra cứu số liệu cụ thể → KHÔNG dùng sql
- Câu hỏi về "tổ hợp xét tuyển", "điều kiện", "quy trình", "tiêu chuẩn" → dùng rag
- Khi không chắc chắn giữa sql và rag → ưu tiên rag

Câu hỏi: %s
Lịch sử hội thoại: %s

Trả về JSON:
{
    "agent": "sql/rag/school_info/general/clarification",
    "confidence": 0.0-1.0,
    "reason": "lý do ngắn gọn",
    "clarification_question": "câu hỏi làm rõ nếu cần"
}`

// combinePrompt merges the SQL and RAG answers into one reply.
// Placeholders: query, sql answer, rag answer.
const combinePrompt = `Tổng hợp kết quả từ các nguồn sau để trả lời câu hỏi người dùng.

Câu hỏi: %s

Kết quả SQL (điểm chuẩn):
%s

Kết quả RAG (quy định):
%s

Hãy tổng hợp thành câu trả lời hoàn chỉnh, rõ ràng, dễ hiểu bằng tiếng Việt.
Nếu có cả số liệu và quy định, kết hợp chúng một cách logic.`

// schoolInfoPrompt narrates one school's record. Placeholders: name,
// description, address, website, majors, query.
const schoolInfoPrompt = `Dựa trên thông tin sau, hãy giới thiệu về trường một cách tự nhiên, thân thiện:

Tên trường: %s
Mô tả: %s
Địa chỉ: %s
Website: %s
Các ngành đào tạo: %s

Câu hỏi gốc: %s

Trả lời bằng tiếng Việt, tự nhiên, đầy đủ thông tin. Nếu mô tả trống thì chỉ nêu thông tin cơ bản có sẵn.`

// generalPrompt answers greetings and questions about the bot itself.
// Placeholder: query.
const generalPrompt = `Bạn là trợ lý tư vấn tuyển sinh quân sự Việt Nam.

Trả lời câu hỏi sau một cách thân thiện và hữu ích:

Câu hỏi: %s

Nếu là chào hỏi, hãy chào lại và giới thiệu bạn có thể giúp:
- Tra cứu điểm chuẩn các trường quân đội
- Giải đáp về tiêu chuẩn, quy định tuyển sinh
- Tư vấn chọn trường phù hợp

Trả lời ngắn gọn, thân thiện.`

const clarifyAnswer = "Tôi cần thêm thông tin để trả lời câu hỏi của bạn.\n\n" +
	"Bạn muốn hỏi về:\n" +
	"1. Điểm chuẩn/chỉ tiêu tuyển sinh?\n" +
	"2. Tiêu chuẩn/điều kiện xét tuyển?\n" +
	"3. Quy trình/thủ tục đăng ký?\n\n" +
	"Vui lòng nói rõ hơn để tôi có thể giúp bạn tốt hơn."

const (
	apologyAnswer  = "Xin lỗi, đã xảy ra lỗi khi xử lý yêu cầu của bạn. Vui lòng thử lại."
	fallbackAnswer = "Xin lỗi, tôi không thể xử lý yêu cầu này."
	noInfoAnswer   = "Xin lỗi, tôi không tìm thấy thông tin liên quan. Vui lòng thử hỏi cách khác."
	noHistoryText  = "Không có lịch sử"
)
