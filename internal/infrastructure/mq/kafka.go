package mq

import (
	"log"

	"coinwallet/internal/config"

	"github.com/IBM/sarama"
)

var kafkaProducer sarama.SyncProducer

// InitKafka builds the synchronous producer used by the outbox sender.
func InitKafka(cfg *config.KafkaConfig) sarama.SyncProducer {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		log.Fatalf("failed to create Kafka producer: %v", err)
	}

	kafkaProducer = producer
	log.Println("Kafka producer ready")
	return producer
}

func SendMessage(topic, key, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}

	_, _, err := kafkaProducer.SendMessage(msg)
	return err
}

func CloseKafka() {
	if kafkaProducer != nil {
		kafkaProducer.Close()
	}
}
