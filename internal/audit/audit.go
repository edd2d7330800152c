package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Actions recorded on the admin and workflow surfaces.
const (
	ActionApproveUser      = "user.approve"
	ActionUpdateUser       = "user.update"
	ActionDeleteUser       = "user.delete"
	ActionAssignEvaluator  = "request.assign"
	ActionSendResult       = "request.send"
	ActionEditDetails      = "request.edit_details"
	ActionSaveSettlement   = "settlement.save"
	ActionExportSettlement = "settlement.export"
)

// Entry represents one audit log record.
type Entry struct {
	ID            string
	ActorID       int64
	ActorRole     string
	Action        string
	ResourceType  string
	ResourceID    string
	Metadata      json.RawMessage
	PayloadDigest string
	IP            string
	CreatedAt     time.Time
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// NewID generates a random audit id.
func NewID() string {
	return "audit-" + uuid.NewString()
}

// DigestJSON computes a SHA256 hex digest for metadata payloads.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
