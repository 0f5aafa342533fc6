package models

// Departments accepted on uploads and student registrations.
const (
	DepartmentBA   = "BA"
	DepartmentBSc  = "BSc"
	DepartmentBCom = "BCom"
	DepartmentBCA  = "BCA"
)

// Academic years accepted on uploads and student registrations.
const (
	YearFirst  = "1st Year"
	YearSecond = "2nd Year"
	YearThird  = "3rd Year"
)

// UploadRecord is the shared shape stored in the books, notes and PYQ collections.
//
// UploadedAtTs is assigned once at creation and is the only reliable sort key;
// UploadedAt is a display string with no parsing guarantee.
type UploadRecord struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	Uploader     string `json:"uploader"`
	Department   string `json:"department"`
	Year         string `json:"year"`
	Data         string `json:"data"`
	MimeType     string `json:"mimeType,omitempty"`
	SizeBytes    int64  `json:"sizeBytes,omitempty"`
	MirrorURL    string `json:"mirrorUrl,omitempty"`
	UploadedAt   string `json:"uploadedAt"`
	UploadedAtTs int64  `json:"uploadedAtTs"`
}

// RecordID implements collection.Record.
func (r UploadRecord) RecordID() string { return r.ID }
