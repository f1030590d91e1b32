package dto

// ReportSubmittedPayload is the body of the REPORT_SUBMITTED event.
type ReportSubmittedPayload struct {
	ReportID    string `json:"report_id"`
	Timestamp   string `json:"timestamp"`
	Name        string `json:"name"`
	Location    string `json:"location"`
	Area        string `json:"area"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	MediaURL    string `json:"media_url,omitempty"`
	UserID      string `json:"user_id"`
}
