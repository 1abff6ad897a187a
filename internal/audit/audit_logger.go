package audit

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Event types recorded in the audit trail
const (
	EventPaymentRecorded   = "PAYMENT_RECORDED"
	EventPaymentUpdated    = "PAYMENT_UPDATED"
	EventPaymentDeleted    = "PAYMENT_DELETED"
	EventAccountValidated  = "ACCOUNT_VALIDATED"
	EventBalanceDrift      = "BALANCE_DRIFT"
	EventOperationRejected = "ERROR"
)

type Event struct {
	Timestamp time.Time
	EventType string
	ActorID   int64
	AccountID int64
	PaymentID int64
	Amount    decimal.Decimal
	Status    string
	Details   map[string]string
}

// Logger writes audit events as structured log entries on a dedicated
// "audit" logger so they can be routed separately from application logs.
type Logger struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger.Named("audit"), now: time.Now}
}

// LogPayment records a committed payment mutation.
func (a *Logger) LogPayment(eventType string, actorID, accountID, paymentID int64, amount decimal.Decimal, reference string) {
	a.log(Event{
		EventType: eventType,
		ActorID:   actorID,
		AccountID: accountID,
		PaymentID: paymentID,
		Amount:    amount,
		Status:    "SUCCESS",
		Details:   map[string]string{"paypal_reference": reference},
	})
}

func (a *Logger) LogOperation(eventType string, actorID, accountID int64, details map[string]string) {
	a.log(Event{
		EventType: eventType,
		ActorID:   actorID,
		AccountID: accountID,
		Status:    "SUCCESS",
		Details:   details,
	})
}

func (a *Logger) LogError(eventType string, actorID, accountID int64, err error) {
	a.log(Event{
		EventType: eventType,
		ActorID:   actorID,
		AccountID: accountID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *Logger) log(event Event) {
	if a == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = a.now().UTC()
	}

	fields := []zap.Field{
		zap.Time("timestamp", event.Timestamp),
		zap.String("event_type", event.EventType),
		zap.String("status", event.Status),
		zap.Int64("account_id", event.AccountID),
	}
	if event.ActorID != 0 {
		fields = append(fields, zap.Int64("actor_id", event.ActorID))
	}
	if event.PaymentID != 0 {
		fields = append(fields, zap.Int64("payment_id", event.PaymentID))
	}
	if !event.Amount.IsZero() {
		fields = append(fields, zap.String("amount", event.Amount.StringFixed(2)))
	}
	if len(event.Details) > 0 {
		fields = append(fields, zap.Any("details", event.Details))
	}

	if event.Status == "FAILED" {
		a.logger.Warn("AUDIT", fields...)
		return
	}
	a.logger.Info("AUDIT", fields...)
}
