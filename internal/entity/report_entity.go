package entity

import "time"

// ReportTimeLayout is the timestamp format written to the sheet.
const ReportTimeLayout = "2006-01-02 15:04:05"

// ReportZone is the single offset every report timestamp is normalized to (UTC+8).
var ReportZone = time.FixedZone("UTC+8", 8*60*60)

// Report is a finalized near-miss submission. It is never mutated after assembly.
type Report struct {
	Timestamp   time.Time
	Name        string `validate:"required"`
	Location    string `validate:"required"`
	Area        string `validate:"required"`
	Severity    string `validate:"required,oneof=Low Medium High"`
	Description string `validate:"required"`
	MediaURL    string `validate:"omitempty,url"`
	UserID      string `validate:"required"`
}

// Row returns the report in sheet column order:
// timestamp, name, location, area, severity, description, media, user id.
func (r Report) Row() []interface{} {
	return []interface{}{
		r.Timestamp.In(ReportZone).Format(ReportTimeLayout),
		r.Name,
		r.Location,
		r.Area,
		r.Severity,
		r.Description,
		r.MediaURL,
		r.UserID,
	}
}
