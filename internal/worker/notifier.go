package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/intake-api/internal/email"
	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/pkg/logger"
	"github.com/jwalitptl/intake-api/pkg/messaging"
	"github.com/jwalitptl/intake-api/pkg/metrics"
)

// dedupeWindow is how long a delivered envelope id is remembered.
const dedupeWindow = 24 * time.Hour

// ErrDuplicate is returned by Handle for an envelope already notified.
var ErrDuplicate = errors.New("briefing notification already sent")

// Notifier emails the clinician inbox whenever a briefing is created.
type Notifier struct {
	broker  messaging.Broker
	sender  email.Sender
	to      string
	logger  *logger.Logger
	metrics *metrics.Metrics

	// sent holds envelope ids already mailed; the outbox delivers at least once.
	sent *cache.Cache
}

func NewNotifier(broker messaging.Broker, sender email.Sender, to string, logger *logger.Logger, m *metrics.Metrics) *Notifier {
	return &Notifier{
		broker:  broker,
		sender:  sender,
		to:      to,
		logger:  logger.WithFields(map[string]interface{}{"component": "notifier"}),
		metrics: m,

		// No janitor goroutine; expired ids are purged as new ones arrive.
		sent: cache.New(dedupeWindow, 0),
	}
}

// Start consumes briefing.created events until ctx is cancelled or the
// broker closes the subscription.
func (n *Notifier) Start(ctx context.Context) error {
	events, err := n.broker.Subscribe(ctx, model.EventBriefingCreated)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", model.EventBriefingCreated, err)
	}
	n.logger.Info("Notifier subscribed", "channel", model.EventBriefingCreated, "to", n.to)

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-events:
			if !ok {
				return nil
			}
			err := n.Handle(ctx, raw)
			if errors.Is(err, ErrDuplicate) {
				n.metrics.NotificationsSent.WithLabelValues("duplicate").Inc()
				continue
			}
			if err != nil {
				n.metrics.NotificationsSent.WithLabelValues("error").Inc()
				n.logger.Error(err, "Failed to send briefing notification")
				continue
			}
			n.metrics.NotificationsSent.WithLabelValues("sent").Inc()
		}
	}
}

// Handle sends the notification for one envelope, once per envelope id.
func (n *Notifier) Handle(ctx context.Context, raw []byte) error {
	var envelope model.EventEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("failed to decode envelope: %w", err)
	}
	id := envelope.ID.String()
	if _, seen := n.sent.Get(id); seen {
		return ErrDuplicate
	}
	var event model.BriefingCreatedEvent
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", envelope.Type, err)
	}

	subject, body := renderBriefingMail(&event)
	if err := n.sender.Send(ctx, n.to, subject, body); err != nil {
		return err
	}
	n.sent.DeleteExpired()
	n.sent.SetDefault(id, struct{}{})
	n.logger.Debug("Briefing notification sent", "briefing_id", event.BriefingID)
	return nil
}

func renderBriefingMail(e *model.BriefingCreatedEvent) (subject, body string) {
	name := e.PatientName
	if name == "" {
		name = e.PatientID
	}
	subject = "Briefing ready for " + name

	var b strings.Builder
	fmt.Fprintf(&b, "A new pre-visit briefing is available for %s (%s).\n\n", name, e.PatientID)
	fmt.Fprintf(&b, "Briefing: %s\n", e.BriefingID)
	if e.ConversationID != nil {
		fmt.Fprintf(&b, "Intake conversation: %s\n", *e.ConversationID)
	}
	fmt.Fprintf(&b, "Flags raised: %d\n\n", e.FlagCount)
	b.WriteString(e.Summary)
	b.WriteString("\n")
	return subject, b.String()
}
