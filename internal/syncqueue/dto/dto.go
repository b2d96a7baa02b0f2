package dto

type DrainResult struct {
	// Skipped is true when the terminal was offline and nothing was attempted.
	Skipped   bool     `json:"skipped"`
	Attempted int      `json:"attempted"`
	Synced    int      `json:"synced"`
	Failed    int      `json:"failed"`
	FailedIDs []string `json:"failed_ids,omitempty"`
}
