package domain

import (
	"time"

	"github.com/google/uuid"
)

// Envelope is a best-effort receipt that a file was received, recorded
// independently of any run outcome. Creation is opportunistic: a failure
// to record an envelope must never abort an import.
type Envelope struct {
	ID             uuid.UUID `json:"id"`
	Target         string    `json:"target"`
	SourceFilename string    `json:"source_filename"`
	FileHash       string    `json:"file_hash"`
	FileSize       int64     `json:"file_size"`
	ReceivedAt     time.Time `json:"received_at"`
}
