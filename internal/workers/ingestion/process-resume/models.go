package processresume

// Output is reported back to the workflow engine when the job finishes.
// Terminal pipeline failures complete the job with Success=false; only
// infrastructure errors fail the job toward the broker.
type Output struct {
	Success       bool     `json:"success"`
	Status        string   `json:"status"`
	FailureReason string   `json:"failureReason,omitempty"`
	ErrorCode     string   `json:"errorCode,omitempty"`
	ModeUsed      string   `json:"modeUsed,omitempty"`
	TotalChars    int      `json:"totalChars,omitempty"`
	PageCount     int      `json:"pageCount,omitempty"`
	Truncated     bool     `json:"truncated,omitempty"`
	ChunksIndexed int      `json:"chunksIndexed,omitempty"`
	Duplicate     bool     `json:"duplicate,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}
