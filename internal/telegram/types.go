package telegram

// APIResponse - обёртка любого ответа Bot API. Result не разбирается:
// боту достаточно знать, прошла ли отправка, и текст ошибки.
type APIResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}
