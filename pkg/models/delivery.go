package models

// SendRequest starts a delivery run.
type SendRequest struct {
	MessageTemplate string `json:"messageTemplate"`
	Mode            string `json:"mode"` // text, media, all (default)
}

type SendSummary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

type SendFailure struct {
	Number string `json:"number"`
	File   string `json:"file,omitempty"`
	Error  string `json:"error"`
}

// SendResponse is returned when a delivery run completes.
type SendResponse struct {
	OK             bool          `json:"ok"`
	RunID          string        `json:"runId"`
	Summary        SendSummary   `json:"summary"`
	SuccessNumbers []string      `json:"successNumbers"`
	FailedNumbers  []string      `json:"failedNumbers"`
	Details        []SendFailure `json:"details"`
}

// Status reports the connection state and loaded inventory.
type Status struct {
	State       string `json:"state"`
	Connected   bool   `json:"connected"`
	Contacts    int    `json:"contacts"`
	Attachments int    `json:"attachments"`
	Sending     bool   `json:"sending"`
}
