package kafka_client

import "time"

const (
	KAFKA_TOPIC_BRAND_MENTIONS = "brand.mentions" // one event per newly stored mention
)

const (
	MAX_RETRIES   = 3
	RETRY_DELAY   = 2 * time.Second
	FLUSH_TIMEOUT = 5 * time.Second
	POLL_TIMEOUT  = 500 * time.Millisecond
)
