package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"clinicremind/internal/types"
)

// MessageRepository appends to the outbound message log.
type MessageRepository struct {
	db  DBTX
	now func() time.Time
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db, now: time.Now}
}

// Insert writes m, assigning an ID and CreatedAt when they are empty.
func (r *MessageRepository) Insert(ctx context.Context, m *types.OutboundMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO messages (id, clinic_id, appointment_id, direction, kind, channel,
		                       recipient, body, provider_message_id, status, created_at)
		 VALUES ($1, $2, $3, 'outbound', $4, $5, $6, $7, $8, 'sent', $9)`,
		m.ID, m.TenantID, m.AppointmentID, string(m.Kind), string(m.Channel),
		m.Recipient, m.Body, m.ProviderMessageID, m.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert message log", err)
	}
	return nil
}
