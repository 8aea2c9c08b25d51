// Package mail sends transactional template emails.
package mail

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrDeliveryFailed is returned when the provider rejects a message.
var ErrDeliveryFailed = errors.New("email delivery failed")

// Recipient is an addressee of a message.
type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Message is a provider-side template rendered with Params.
type Message struct {
	// Template is a short name used for logs and metrics.
	Template   string
	TemplateID int64
	To         Recipient
	Params     map[string]any
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Templates holds the provider template ids used by the portal.
type Templates struct {
	BrokerInvite   int64
	Verification   int64
	CompanyWelcome int64
	VehicleRequest int64
}

// Template names.
const (
	TemplateBrokerInvite   = "broker_invite"
	TemplateVerification   = "verification"
	TemplateCompanyWelcome = "company_welcome"
	TemplateVehicleRequest = "vehicle_request"
)

// LogMailer only logs messages. It is used when no provider key is configured.
type LogMailer struct {
	Logger *zap.Logger
}

func (m LogMailer) Send(_ context.Context, msg Message) error {
	logger := m.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("Email not sent, mail provider disabled",
		zap.String("template", msg.Template),
		zap.String("to", msg.To.Email),
	)
	return nil
}

// Recorder keeps messages in memory. Set Err to make every Send fail.
type Recorder struct {
	mu       sync.Mutex
	Err      error
	messages []Message
}

func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, msg)
	return nil
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Last returns the most recent message, if any.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return Message{}, false
	}
	return r.messages[len(r.messages)-1], true
}
