package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

type KafkaConfig struct {
	Brokers []string
}

func NewKafkaConfig() *KafkaConfig {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		log.Fatal("Missing Environment variable KAFKA_BROKERS")
	}
	return &KafkaConfig{Brokers: strings.Split(brokers, ",")}
}

// NewConsumerGroup builds a consumer group that starts from the latest offset
// and allows a single in-flight request, preserving strict per-partition
// ordering. Session and heartbeat timeouts differ per priority tier.
func (k *KafkaConfig) NewConsumerGroup(groupID string, sessionTimeout, heartbeatInterval time.Duration) (sarama.ConsumerGroup, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Group.Session.Timeout = sessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = heartbeatInterval
	cfg.Consumer.Return.Errors = false
	cfg.Net.MaxOpenRequests = 1

	group, err := sarama.NewConsumerGroup(k.Brokers, groupID, cfg)
	if err != nil {
		log.Println("NewConsumerGroup-err:", err)
		return nil, err
	}
	return group, nil
}
