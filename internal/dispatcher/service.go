package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"ShopNotifier/internal/config"
	"ShopNotifier/internal/deadletter"
	"ShopNotifier/internal/events"
	"ShopNotifier/internal/processor"
)

// Consumer-group identities and their disjoint topic sets. User and order
// events ride the high-priority group with tighter liveness timeouts.
const (
	HighPriorityGroupID     = "priority1-notification-group"
	StandardPriorityGroupID = "priority2-notification-group"
)

var (
	HighPriorityTopics     = []string{"user-events", "order-events"}
	StandardPriorityTopics = []string{"product-events", "recommendation-events", "promotional-events"}
)

// HandlerFunc processes one routed message. The bool means disposition is
// complete (handled, including a processor that dead-lettered the event
// itself); false or an error tells the dispatcher to dead-letter the message.
type HandlerFunc func(ctx context.Context, payload []byte, mc events.MessageContext) (bool, error)

// RoutingTable maps a topic name to its handler.
type RoutingTable map[string]HandlerFunc

// Validate fails fast on a subscribed topic with no registered handler: that
// is a configuration mismatch, caught at startup instead of at runtime.
func (rt RoutingTable) Validate(topicSets ...[]string) error {
	for _, topics := range topicSets {
		for _, topic := range topics {
			if _, ok := rt[topic]; !ok {
				return fmt.Errorf("no handler registered for subscribed topic %s", topic)
			}
		}
	}
	return nil
}

// NewRoutingTable binds each topic to its event processor, deserializing the
// typed event on the way in.
func NewRoutingTable(
	productProc *processor.ProductEventProcessor,
	orderProc *processor.OrderUpdateEventProcessor,
	userProc *processor.UserUpdateEventProcessor,
	recProc *processor.RecommendationEventProcessor,
) RoutingTable {
	return RoutingTable{
		"user-events": func(ctx context.Context, payload []byte, mc events.MessageContext) (bool, error) {
			var event events.UserEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				return false, fmt.Errorf("malformed user event: %w", err)
			}
			return userProc.ProcessUserUpdateEvent(ctx, event, mc)
		},
		"order-events": func(ctx context.Context, payload []byte, mc events.MessageContext) (bool, error) {
			var event events.OrderEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				return false, fmt.Errorf("malformed order event: %w", err)
			}
			return orderProc.ProcessOrderUpdateEvent(ctx, event, mc)
		},
		"product-events": func(ctx context.Context, payload []byte, mc events.MessageContext) (bool, error) {
			var event events.ProductEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				return false, fmt.Errorf("malformed product event: %w", err)
			}
			return productProc.ProcessProductEvent(ctx, event, mc)
		},
		"recommendation-events": func(ctx context.Context, payload []byte, mc events.MessageContext) (bool, error) {
			var event events.RecommendationEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				return false, fmt.Errorf("malformed recommendation event: %w", err)
			}
			return recProc.ProcessRecommendationEvent(ctx, event, mc)
		},
		"promotional-events": func(ctx context.Context, payload []byte, mc events.MessageContext) (bool, error) {
			var event events.PromotionalBatchEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				return false, fmt.Errorf("malformed promotional event: %w", err)
			}
			return productProc.ProcessPromotionalEvent(ctx, event, mc)
		},
	}
}

// DeadLetterSink receives messages the dispatcher could not hand off.
type DeadLetterSink interface {
	Record(ctx context.Context, topic string, payload []byte, fc deadletter.FailureContext)
}

// NotificationProcessorService owns the two competing consumer groups and
// routes every message to exactly one processor. It never lets a processor
// failure crash the consume loop: every path ends in success, a logged no-op,
// or a dead-letter write.
type NotificationProcessorService struct {
	highPriority     sarama.ConsumerGroup
	standardPriority sarama.ConsumerGroup
	routes           RoutingTable
	dlq              DeadLetterSink

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewNotificationProcessorService validates the routing table against both
// topic sets and connects the two consumer groups.
func NewNotificationProcessorService(kafka *config.KafkaConfig, routes RoutingTable, dlq DeadLetterSink) (*NotificationProcessorService, error) {
	if err := routes.Validate(HighPriorityTopics, StandardPriorityTopics); err != nil {
		return nil, err
	}

	highPriority, err := kafka.NewConsumerGroup(HighPriorityGroupID, 30*time.Second, 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to create high priority consumer group: %w", err)
	}
	standardPriority, err := kafka.NewConsumerGroup(StandardPriorityGroupID, 45*time.Second, 5*time.Second)
	if err != nil {
		highPriority.Close()
		return nil, fmt.Errorf("failed to create standard priority consumer group: %w", err)
	}

	return &NotificationProcessorService{
		highPriority:     highPriority,
		standardPriority: standardPriority,
		routes:           routes,
		dlq:              dlq,
	}, nil
}

// Start launches both consume loops.
func (s *NotificationProcessorService) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.runGroup(ctx, s.highPriority, HighPriorityTopics)
	s.runGroup(ctx, s.standardPriority, StandardPriorityTopics)

	log.Printf("Kafka priority queues started: high=%v standard=%v", HighPriorityTopics, StandardPriorityTopics)
}

func (s *NotificationProcessorService) runGroup(ctx context.Context, group sarama.ConsumerGroup, topics []string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		handler := &groupHandler{svc: s}
		for {
			// Consume returns on rebalance; loop until shutdown.
			if err := group.Consume(ctx, topics, handler); err != nil {
				log.Printf("[Dispatcher] Consumer group error on %v: %v", topics, err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
}

// Shutdown drains in-flight message handling, then closes both consumer
// groups. It is idempotent and tolerates handles that never connected.
func (s *NotificationProcessorService) Shutdown(ctx context.Context) error {
	var closeErr error
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			log.Println("[Dispatcher] Timed out waiting for in-flight messages")
		}

		for _, group := range []sarama.ConsumerGroup{s.highPriority, s.standardPriority} {
			if group == nil {
				continue
			}
			if err := group.Close(); err != nil {
				log.Println("[Dispatcher] Failed to close consumer group:", err)
				closeErr = err
			}
		}
		log.Println("Kafka consumers disconnected.")
	})
	return closeErr
}

// processMessage runs the full per-message pipeline: parse check, routing,
// and failure disposition.
func (s *NotificationProcessorService) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) {
	if len(msg.Value) == 0 {
		log.Printf("[Dispatcher] Skipping empty message on topic %s", msg.Topic)
		return
	}

	mc := events.MessageContext{Topic: msg.Topic, Partition: msg.Partition, Offset: msg.Offset}

	if !json.Valid(msg.Value) {
		// Re-parsing will never succeed, so there is nothing to retry.
		log.Printf("[Dispatcher] JSON parse error on topic %s (partition %d, offset %d)", msg.Topic, msg.Partition, msg.Offset)
		s.dlq.Record(ctx, msg.Topic, msg.Value, deadletter.FailureContext{
			Partition: mc.Partition,
			Offset:    mc.Offset,
			Reason:    "Invalid JSON payload",
		})
		return
	}

	handler, ok := s.routes[msg.Topic]
	if !ok {
		// A missing route is an operational misconfiguration, not a poison
		// message.
		log.Printf("[Dispatcher] No handler registered for topic %s", msg.Topic)
		return
	}

	log.Printf("[Dispatcher] Processing event on topic %s", msg.Topic)
	handled, err := s.invoke(ctx, handler, msg.Value, mc)
	switch {
	case err != nil:
		log.Printf("[Dispatcher] Error in handler for %s: %v", msg.Topic, err)
		s.dlq.Record(ctx, msg.Topic, msg.Value, deadletter.FailureContext{
			Partition: mc.Partition,
			Offset:    mc.Offset,
			Reason:    err.Error(),
		})
	case !handled:
		s.dlq.Record(ctx, msg.Topic, msg.Value, deadletter.FailureContext{
			Partition: mc.Partition,
			Offset:    mc.Offset,
			Reason:    "Handler returned false",
		})
	}
}

// invoke shields the consume loop from a panicking processor.
func (s *NotificationProcessorService) invoke(ctx context.Context, handler HandlerFunc, payload []byte, mc events.MessageContext) (handled bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			handled, err = false, fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, payload, mc)
}
