//go:build integration

package producer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"pixellocker/internal/platform/kafka/producer"
	"pixellocker/pkg/testutil/containers"
)

type ProducerIntegrationSuite struct {
	suite.Suite
	kafka    *containers.KafkaContainer
	producer *producer.Producer
}

func TestProducerIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ProducerIntegrationSuite))
}

func (s *ProducerIntegrationSuite) SetupSuite() {
	s.kafka = containers.GetManager().GetKafka(s.T())

	cfg := producer.DefaultConfig(s.kafka.Brokers)
	cfg.DeliveryTimeout = 10 * time.Second
	prod, err := producer.New(cfg, nil)
	s.Require().NoError(err)
	s.producer = prod
}

func (s *ProducerIntegrationSuite) TearDownSuite() {
	if s.producer != nil {
		_ = s.producer.Close()
	}
}

func (s *ProducerIntegrationSuite) consume(group, topic, key string) *kgo.Record {
	client, err := s.kafka.NewConsumer(group, topic)
	s.Require().NoError(err)
	defer client.Close()

	return containers.WaitForRecord(context.Background(), client, 10*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == key
	})
}

// Produce only returns once the broker has acknowledged the record.
func (s *ProducerIntegrationSuite) TestProduceDeliversRecord() {
	ctx := context.Background()
	topic := "test-produce-sync"
	s.Require().NoError(s.producer.EnsureTopic(ctx, topic, 1, 1))

	err := s.producer.Produce(ctx, &producer.Message{
		Topic: topic,
		Key:   []byte("entry-1"),
		Value: []byte(`{"event_type":"credential_issued"}`),
	})
	s.Require().NoError(err)

	record := s.consume("test-produce-sync-group", topic, "entry-1")
	s.Require().NotNil(record, "record should be consumable")
	s.JSONEq(`{"event_type":"credential_issued"}`, string(record.Value))
}

func (s *ProducerIntegrationSuite) TestProducePreservesHeaders() {
	ctx := context.Background()
	topic := "test-produce-headers"
	s.Require().NoError(s.producer.EnsureTopic(ctx, topic, 1, 1))

	err := s.producer.Produce(ctx, &producer.Message{
		Topic: topic,
		Key:   []byte("entry-2"),
		Value: []byte("{}"),
		Headers: map[string]string{
			"aggregate_type": "credential",
			"aggregate_id":   "0xabc",
			"event_type":     "credential_revoked",
		},
	})
	s.Require().NoError(err)

	record := s.consume("test-produce-headers-group", topic, "entry-2")
	s.Require().NotNil(record)

	headers := make(map[string]string)
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	s.Equal("credential", headers["aggregate_type"])
	s.Equal("0xabc", headers["aggregate_id"])
	s.Equal("credential_revoked", headers["event_type"])
}

// EnsureTopic treats an existing topic as success.
func (s *ProducerIntegrationSuite) TestEnsureTopicIsIdempotent() {
	ctx := context.Background()
	topic := "test-ensure-topic"
	s.Require().NoError(s.producer.EnsureTopic(ctx, topic, 3, 1))
	s.Require().NoError(s.producer.EnsureTopic(ctx, topic, 3, 1))
}

func (s *ProducerIntegrationSuite) TestProducerHealthy() {
	s.True(s.producer.Healthy(context.Background()))
}

func (s *ProducerIntegrationSuite) TestProduceAfterCloseFails() {
	cfg := producer.DefaultConfig(s.kafka.Brokers)
	prod, err := producer.New(cfg, nil)
	s.Require().NoError(err)
	s.Require().NoError(prod.Close())

	err = prod.Produce(context.Background(), &producer.Message{Topic: "test-closed", Value: []byte("x")})
	s.Error(err)
	s.False(prod.Healthy(context.Background()))
}
