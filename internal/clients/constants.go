package clients

import "time"

const (
	INITIAL_BACKOFF = 1 * time.Second
	USER_AGENT      = "brandpulse-client/1.0 (+https://github.com/spacesedan/brandpulse)"
)
