package dto

// RowError describes one rejected CSV row: the raw cells keyed by header name
// and a fixed reason string.
type RowError struct {
	Row    map[string]string `json:"row"`
	Reason string            `json:"reason" example:"Validation failed"`
}

// UploadResponse is the body of a successful POST /api/upload.
//
// TotalRecords always equals SuccessfulRecords + FailedRecords.
type UploadResponse struct {
	TotalRecords      int        `json:"total_records" example:"250"`
	SuccessfulRecords int        `json:"successful_records" example:"248"`
	FailedRecords     int        `json:"failed_records" example:"2"`
	Errors            []RowError `json:"errors"`
}
