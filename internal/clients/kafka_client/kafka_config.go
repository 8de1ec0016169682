package kafka_client

type KafkaConfig struct {
	Broker        string
	Topic         string
	TransactionID string

	// Consumer side.
	GroupID       string
	FromBeginning bool
}

func (c KafkaConfig) withDefaults() KafkaConfig {
	if c.Topic == "" {
		c.Topic = KAFKA_TOPIC_BRAND_MENTIONS
	}
	if c.TransactionID == "" {
		c.TransactionID = "brandpulse-producer-1"
	}
	if c.GroupID == "" {
		c.GroupID = "brandpulse-mentionctl"
	}
	return c
}

func (c KafkaConfig) offsetReset() string {
	if c.FromBeginning {
		return "earliest"
	}
	return "latest"
}
