package models

import (
	"time"

	"github.com/google/uuid"
)

// UploadLog records one completed ingestion: which source was loaded and the
// resulting row counts. Rows are written only after a successful bulk insert.
type UploadLog struct {
	ID         uuid.UUID
	Source     string
	Total      int
	Successful int
	Failed     int
	IngestedAt time.Time
}
