package models

import "fmt"

// Error codes used across the pipeline and in batch results.
const (
	ErrCodeFetch         = "FETCH_FAILED"
	ErrCodeRender        = "RENDER_FAILED"
	ErrCodePolicyBlocked = "POLICY_BLOCKED"
	ErrCodeParse         = "PARSE_FAILED"
	ErrCodeNoData        = "NO_DATA"
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeTimeout       = "SCRAPE_TIMEOUT"
	ErrCodeLLMFailure    = "LLM_FAILURE"
)

// HarvestError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type HarvestError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *HarvestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *HarvestError) Unwrap() error {
	return e.Err
}

// NewHarvestError creates a new HarvestError.
func NewHarvestError(code, message string, err error) *HarvestError {
	return &HarvestError{Code: code, Message: message, Err: err}
}
