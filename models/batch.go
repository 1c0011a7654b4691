package models

import "time"

// Terminal batch statuses reported to callers.
const (
	BatchStatusSuccess = "success"
	BatchStatusPartial = "partial"
	BatchStatusNoData  = "no_data"
	BatchStatusBlocked = "blocked"
)

// Orchestrator run states. A run moves strictly forward:
//
//	initialized → analyzed → checked_policy → {blocked | extracted | no_data}
//	→ completed | failed
const (
	StateInitialized   = "initialized"
	StateAnalyzed      = "analyzed"
	StateCheckedPolicy = "checked_policy"
	StateBlocked       = "blocked"
	StateExtracted     = "extracted"
	StateNoData        = "no_data"
	StateCompleted     = "completed"
	StateFailed        = "failed"
)

// BatchRequest describes one orchestrated harvesting run.
type BatchRequest struct {
	// URLs are the seed URLs. Required, at least one.
	URLs []string `json:"urls"`

	// ItemLimit caps records per fetched URL. Default: 5.
	ItemLimit int `json:"item_limit,omitempty"`

	// ForceRender forces the browser engine for every URL regardless
	// of what site analysis recommends.
	ForceRender bool `json:"force_render,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *BatchRequest) Defaults() {
	if r.ItemLimit <= 0 {
		r.ItemLimit = 5
	}
}

// BatchResult is the terminal output of one orchestrator run.
type BatchResult struct {
	Status     string          `json:"status"`
	Records    []ProductRecord `json:"records"`
	TotalItems int             `json:"total_items"`
	Timestamp  time.Time       `json:"timestamp"`
	Errors     []string        `json:"errors,omitempty"`
}
