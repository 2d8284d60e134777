// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"

	// 文档相关错误
	ErrorDocumentNotFound     = "DOCUMENT_NOT_FOUND"
	ErrorDocumentCreateFailed = "DOCUMENT_CREATE_FAILED"
	ErrorDocumentInvalid      = "DOCUMENT_INVALID"

	// 修订相关错误
	ErrorRevisionFailed   = "REVISION_FAILED"
	ErrorProposerFailure  = "PROPOSER_FAILURE"
	ErrorEntityNotFound   = "ENTITY_NOT_FOUND"
	ErrorInvalidPayload   = "INVALID_PAYLOAD"
	ErrorFeedbackRequired = "FEEDBACK_REQUIRED"

	// 实体相关错误
	ErrorCharacterNotFound = "CHARACTER_NOT_FOUND"
	ErrorLocationNotFound  = "LOCATION_NOT_FOUND"
	ErrorSceneNotFound     = "SCENE_NOT_FOUND"

	// LLM服务相关错误
	ErrorLLMServiceUnavailable = "LLM_SERVICE_UNAVAILABLE"
	ErrorLLMConfigInvalid      = "LLM_CONFIG_INVALID"

	// 导出相关错误
	ErrorExportFailed   = "EXPORT_FAILED"
	ErrorExportNotFound = "EXPORT_NOT_FOUND"
)
