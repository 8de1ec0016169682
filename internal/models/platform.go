package models

import (
	"fmt"
	"strings"
	"time"
)

type Platform string

const (
	PlatformYouTube    Platform = "youtube"
	PlatformTwitter    Platform = "twitter"
	PlatformReddit     Platform = "reddit"
	PlatformGoogle     Platform = "google"
	PlatformFacebook   Platform = "facebook"
	PlatformInstagram  Platform = "instagram"
	PlatformNews       Platform = "news"
	PlatformGoogleNews Platform = "googlenews"
)

// SupportedPlatforms is the realtime set. Executions are only produced for
// platforms listed here.
var SupportedPlatforms = []Platform{
	PlatformYouTube,
	PlatformTwitter,
	PlatformReddit,
	PlatformGoogle,
	PlatformFacebook,
	PlatformInstagram,
	PlatformNews,
	PlatformGoogleNews,
}

func (p Platform) IsSupported() bool {
	for _, s := range SupportedPlatforms {
		if s == p {
			return true
		}
	}
	return false
}

// ParsePlatform accepts the canonical names plus the aliases brand configs
// have historically used ("x" for twitter, "web" for google).
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "youtube":
		return PlatformYouTube, nil
	case "twitter", "x":
		return PlatformTwitter, nil
	case "reddit":
		return PlatformReddit, nil
	case "google", "web":
		return PlatformGoogle, nil
	case "facebook":
		return PlatformFacebook, nil
	case "instagram":
		return PlatformInstagram, nil
	case "news", "newsapi":
		return PlatformNews, nil
	case "googlenews", "google_news":
		return PlatformGoogleNews, nil
	default:
		return "", fmt.Errorf("unknown platform %q", s)
	}
}

type Frequency string

const (
	Frequency5m  Frequency = "5m"
	Frequency15m Frequency = "15m"
	Frequency30m Frequency = "30m"
	Frequency1h  Frequency = "1h"
	Frequency6h  Frequency = "6h"
	Frequency12h Frequency = "12h"
	Frequency24h Frequency = "24h"
)

// Interval maps a polling frequency to its duration. Unknown values fall back
// to hourly.
func (f Frequency) Interval() time.Duration {
	switch f {
	case Frequency5m:
		return 5 * time.Minute
	case Frequency15m:
		return 15 * time.Minute
	case Frequency30m:
		return 30 * time.Minute
	case Frequency6h:
		return 6 * time.Hour
	case Frequency12h:
		return 12 * time.Hour
	case Frequency24h:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}
