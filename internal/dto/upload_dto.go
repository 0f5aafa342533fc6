package dto

import "github.com/noah-isme/campus-portal-api/internal/models"

// UploadCreateRequest carries the form fields sent alongside an uploaded file.
type UploadCreateRequest struct {
	Category   string `form:"category" json:"category" validate:"required,max=120"`
	Uploader   string `form:"uploader" json:"uploader" validate:"required,max=120"`
	Department string `form:"department" json:"department" validate:"required,oneof=BA BSc BCom BCA"`
	Year       string `form:"year" json:"year" validate:"required,oneof='1st Year' '2nd Year' '3rd Year'"`
}

// UploadUpdateRequest edits the descriptive fields of an upload. Name and payload are immutable.
type UploadUpdateRequest struct {
	Category   *string `json:"category" validate:"omitempty,min=1,max=120"`
	Uploader   *string `json:"uploader" validate:"omitempty,min=1,max=120"`
	Department *string `json:"department" validate:"omitempty,oneof=BA BSc BCom BCA"`
	Year       *string `json:"year" validate:"omitempty,oneof='1st Year' '2nd Year' '3rd Year'"`
}

// UploadFilter narrows a listing. Empty fields match everything.
type UploadFilter struct {
	Query      string `query:"q"`
	Department string `query:"department"`
	Year       string `query:"year"`
	Category   string `query:"category"`
}

// UploadResponse is the serialized form of an upload record.
type UploadResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	Uploader     string `json:"uploader"`
	Department   string `json:"department"`
	Year         string `json:"year"`
	Data         string `json:"data,omitempty"`
	MimeType     string `json:"mimeType,omitempty"`
	SizeBytes    int64  `json:"sizeBytes,omitempty"`
	MirrorURL    string `json:"mirrorUrl,omitempty"`
	UploadedAt   string `json:"uploadedAt"`
	UploadedAtTs int64  `json:"uploadedAtTs"`
}

// UploadListResponse wraps a listing with the revision it was read at.
type UploadListResponse struct {
	Revision    int64            `json:"revision"`
	Items       []UploadResponse `json:"items"`
	Departments []string         `json:"departments"`
	Years       []string         `json:"years"`
	Categories  []string         `json:"categories"`
}

// NewUploadResponse converts a record into its DTO. includeData controls whether the
// encoded payload is embedded.
func NewUploadResponse(record models.UploadRecord, includeData bool) UploadResponse {
	response := UploadResponse{
		ID:           record.ID,
		Name:         record.Name,
		Category:     record.Category,
		Uploader:     record.Uploader,
		Department:   record.Department,
		Year:         record.Year,
		MimeType:     record.MimeType,
		SizeBytes:    record.SizeBytes,
		MirrorURL:    record.MirrorURL,
		UploadedAt:   record.UploadedAt,
		UploadedAtTs: record.UploadedAtTs,
	}
	if includeData {
		response.Data = record.Data
	}
	return response
}

// UploadMutationResponse reports the record touched by a mutation and the revision it produced.
type UploadMutationResponse struct {
	Revision int64          `json:"revision"`
	Item     UploadResponse `json:"item"`
}
