package collection

// JSON schemas for the stored record kinds. They check shape, not business rules:
// validation of departments, years and sizes happens before a record is ever written.
const (
	UploadRecordSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["name", "data"],
    "properties": {
      "id": {"type": "string"},
      "name": {"type": "string"},
      "category": {"type": "string"},
      "uploader": {"type": "string"},
      "department": {"type": "string"},
      "year": {"type": "string"},
      "data": {"type": "string"},
      "mimeType": {"type": "string"},
      "sizeBytes": {"type": "integer"},
      "mirrorUrl": {"type": "string"},
      "uploadedAt": {"type": "string"},
      "uploadedAtTs": {"type": "integer"}
    }
  }
}`

	DiscussionMessageSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["text", "from"],
    "properties": {
      "id": {"type": "string"},
      "text": {"type": "string"},
      "time": {"type": "string"},
      "from": {"enum": ["Admin", "Student"]},
      "name": {"type": "string"},
      "highlight": {"type": "boolean"},
      "sentAtTs": {"type": "integer"}
    }
  }
}`

	StudentRequestSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["email"],
    "properties": {
      "name": {"type": "string"},
      "email": {"type": "string"},
      "rollno": {"type": "string"},
      "department": {"type": "string"},
      "year": {"type": "string"},
      "mobile": {"type": "string"}
    }
  }
}`
)
