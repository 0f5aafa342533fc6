package dto

import "github.com/noah-isme/campus-portal-api/internal/models"

// StudentRegisterRequest is a registration submitted for admin review.
type StudentRegisterRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	Email      string `json:"email" validate:"required,email,max=255"`
	RollNo     string `json:"rollno" validate:"required,max=40"`
	Department string `json:"department" validate:"required,oneof=BA BSc BCom BCA"`
	Year       string `json:"year" validate:"required,oneof='1st Year' '2nd Year' '3rd Year'"`
	Mobile     string `json:"mobile" validate:"required,max=20"`
}

// StudentFilter narrows the pending or approved listings.
type StudentFilter struct {
	Search     string `query:"search"`
	Department string `query:"department"`
	Year       string `query:"year"`
}

// StudentResponse is the serialized form of a pending or approved student.
type StudentResponse struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	RollNo     string `json:"rollno"`
	Department string `json:"department"`
	Year       string `json:"year"`
	Mobile     string `json:"mobile"`
}

// StudentListResponse wraps a listing with the revision it was read at.
type StudentListResponse struct {
	Revision int64             `json:"revision"`
	Items    []StudentResponse `json:"items"`
}

// NewStudentResponse converts a model into a DTO.
func NewStudentResponse(student models.StudentRequest) StudentResponse {
	return StudentResponse{
		Name:       student.Name,
		Email:      student.Email,
		RollNo:     student.RollNo,
		Department: student.Department,
		Year:       student.Year,
		Mobile:     student.Mobile,
	}
}
