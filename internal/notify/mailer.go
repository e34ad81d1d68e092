package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BookingConfirmation is the payload for the post-booking email.
type BookingConfirmation struct {
	PatientName  string
	PatientEmail string
	TherapistID  uuid.UUID
	StartAt      time.Time
	Mode         string
}

// Mailer dispatches booking confirmations. Delivery is fire-and-forget from
// the booking flow: the durable record is the change request, not the email.
type Mailer interface {
	SendBookingConfirmation(ctx context.Context, bc BookingConfirmation) error
}

// LogMailer logs the intent to send instead of dispatching real email.
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendBookingConfirmation(_ context.Context, bc BookingConfirmation) error {
	// Reminder goes out 30 minutes before the session.
	remindAt := bc.StartAt.Add(-30 * time.Minute)

	m.log.Info("booking confirmation email",
		zap.String("to", bc.PatientEmail),
		zap.String("patient", bc.PatientName),
		zap.String("therapist_id", bc.TherapistID.String()),
		zap.Time("start_at", bc.StartAt),
		zap.String("mode", bc.Mode),
		zap.Time("remind_at", remindAt),
	)
	return nil
}
