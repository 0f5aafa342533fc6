package models

// StudentRequest is a registration awaiting admin review. The same shape is kept once the
// student is approved. Email is the unique key across the pending and approved collections.
type StudentRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	RollNo     string `json:"rollno"`
	Department string `json:"department"`
	Year       string `json:"year"`
	Mobile     string `json:"mobile"`
}

// RecordID implements collection.Record.
func (s StudentRequest) RecordID() string { return s.Email }

// ApprovedStudent is a StudentRequest accepted by an admin.
type ApprovedStudent = StudentRequest
