package models

// TryOnJobIn is the body of POST /api/tryon/jobs.
type TryOnJobIn struct {
	PersonImageBase64 string `json:"person_image_base64" validate:"required"`
	OutfitImageURL    string `json:"outfit_image_url" validate:"required,url"`
}

type TryOnJobStatus string

const (
	TryOnJobPending    TryOnJobStatus = "pending"
	TryOnJobProcessing TryOnJobStatus = "processing"
	TryOnJobCompleted  TryOnJobStatus = "completed"
	TryOnJobFailed     TryOnJobStatus = "failed"
)

// Terminal reports whether the job can no longer change state.
func (s TryOnJobStatus) Terminal() bool {
	return s == TryOnJobCompleted || s == TryOnJobFailed
}

// TryOnJobResult is what the worker writes as the task result.
type TryOnJobResult struct {
	ImageURL  string `json:"image_url,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

type TryOnJobResponse struct {
	ID        string         `json:"id"`
	Status    TryOnJobStatus `json:"status"`
	ImageURL  string         `json:"image_url,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorCode string         `json:"error_code,omitempty"`
}
