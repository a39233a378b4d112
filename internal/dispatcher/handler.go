package dispatcher

import "github.com/IBM/sarama"

// groupHandler adapts the service to sarama's ConsumerGroupHandler. Each
// claim's messages are handled one at a time, in offset order, and marked
// only after handling completes: the at-least-once, per-partition ordering
// guarantee the processors rely on.
type groupHandler struct {
	svc *NotificationProcessorService
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		h.svc.processMessage(session.Context(), msg)
		session.MarkMessage(msg, "")
	}
	return nil
}
