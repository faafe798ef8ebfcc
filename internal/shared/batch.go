package shared

import "sync"

// BatchFailure records a single item that could not be processed.
type BatchFailure struct {
	Item   string `json:"item"`
	Reason string `json:"reason"`
}

// BatchResult accumulates per-item outcomes for batch operations.
// One item failing never aborts its siblings, so handlers report the
// whole set back to the caller instead of returning the first error.
type BatchResult struct {
	mu        sync.Mutex
	Succeeded []string       `json:"succeeded"`
	Failed    []BatchFailure `json:"failed"`
}

// Succeed records a processed item.
func (r *BatchResult) Succeed(item string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Succeeded = append(r.Succeeded, item)
}

// Fail records an item together with the reason it was rejected.
func (r *BatchResult) Fail(item string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reason := "unknown"
	if err != nil {
		reason = err.Error()
	}
	r.Failed = append(r.Failed, BatchFailure{Item: item, Reason: reason})
}
