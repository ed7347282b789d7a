// Package kafka 提供摄取服务的 Kafka 告警生产者
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/riskhub-protocol/riskhub/pkg/logger"
)

// ReorgAlert 链重组告警消息
type ReorgAlert struct {
	NetworkID    string `json:"network_id"`
	ForkPosition int64  `json:"fork_position"`
	OldPosition  int64  `json:"old_position"`
	NewPosition  int64  `json:"new_position"`
	Depth        int64  `json:"depth"`
	DetectedAt   int64  `json:"detected_at"`
}

// ForkAlert 无法调和分叉告警消息
type ForkAlert struct {
	NetworkID          string `json:"network_id"`
	ClaimedPosition    int64  `json:"claimed_position"`
	ClaimedFingerprint string `json:"claimed_fingerprint"`
	CheckpointPosition int64  `json:"checkpoint_position"`
	Reason             string `json:"reason"`
	DetectedAt         int64  `json:"detected_at"`
}

// AlertProducer 告警生产者接口, 关闭 Kafka 时使用空实现
type AlertProducer interface {
	SendReorgAlert(ctx context.Context, alert *ReorgAlert) error
	SendForkAlert(ctx context.Context, alert *ForkAlert) error
	Close() error
}

type alertProducer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewAlertProducer 创建告警生产者
func NewAlertProducer(brokers []string, clientID, topic string) (AlertProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Compression = sarama.CompressionSnappy
	config.ClientID = clientID

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return &alertProducer{producer: producer, topic: topic}, nil
}

func (p *alertProducer) Close() error {
	return p.producer.Close()
}

// SendReorgAlert 发送链重组告警
func (p *alertProducer) SendReorgAlert(ctx context.Context, alert *ReorgAlert) error {
	return p.send(alert.NetworkID, "reorg", alert)
}

// SendForkAlert 发送无法调和分叉告警
func (p *alertProducer) SendForkAlert(ctx context.Context, alert *ForkAlert) error {
	return p.send(alert.NetworkID, "irreconcilable_fork", alert)
}

func (p *alertProducer) send(networkID, alertType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(networkID),
		Value:     sarama.ByteEncoder(data),
		Timestamp: time.Now(),
		Headers: []sarama.RecordHeader{
			{Key: []byte("alert_type"), Value: []byte(alertType)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		logger.Error("failed to send ingestion alert",
			zap.String("network_id", networkID),
			zap.String("alert_type", alertType),
			zap.Error(err))
		return err
	}

	logger.Debug("ingestion alert sent",
		zap.String("network_id", networkID),
		zap.String("alert_type", alertType),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))

	return nil
}

// NopAlertProducer 空实现, Kafka 未启用时使用
type NopAlertProducer struct{}

func (NopAlertProducer) SendReorgAlert(ctx context.Context, alert *ReorgAlert) error { return nil }
func (NopAlertProducer) SendForkAlert(ctx context.Context, alert *ForkAlert) error   { return nil }
func (NopAlertProducer) Close() error                                                { return nil }
