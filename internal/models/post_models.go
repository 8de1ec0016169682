package models

import (
	"errors"
	"strings"
	"time"
)

type Author struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type Content struct {
	Text        string `json:"text"`
	Description string `json:"description,omitempty"`
	Title       string `json:"title,omitempty"`
	MediaURL    string `json:"mediaUrl,omitempty"`
}

type Metrics struct {
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares,omitempty"`
	Views    int64 `json:"views,omitempty"`
}

// CandidatePost is the normalized shape every fetcher emits. The brand and
// group fields are filled in by the orchestrator.
type CandidatePost struct {
	Keyword    string    `json:"keyword"`
	Platform   Platform  `json:"platform"`
	CreatedAt  time.Time `json:"createdAt"`
	Author     Author    `json:"author"`
	Content    Content   `json:"content"`
	Metrics    Metrics   `json:"metrics"`
	SourceURL  string    `json:"sourceUrl,omitempty"`
	ExternalID string    `json:"externalId,omitempty"`

	BrandID   string `json:"brand,omitempty"`
	BrandName string `json:"brandName,omitempty"`
	GroupID   string `json:"groupId,omitempty"`
	GroupName string `json:"groupName,omitempty"`
}

var (
	ErrMissingKeyword   = errors.New("candidate post requires a keyword")
	ErrMissingPlatform  = errors.New("candidate post requires a platform")
	ErrMissingCreatedAt = errors.New("candidate post requires createdAt")
)

// NewCandidatePost enforces the required fields. Fetchers drop items that
// fail construction instead of emitting half-filled posts.
func NewCandidatePost(keyword string, platform Platform, createdAt time.Time) (CandidatePost, error) {
	if strings.TrimSpace(keyword) == "" {
		return CandidatePost{}, ErrMissingKeyword
	}
	if platform == "" {
		return CandidatePost{}, ErrMissingPlatform
	}
	if createdAt.IsZero() {
		return CandidatePost{}, ErrMissingCreatedAt
	}
	return CandidatePost{
		Keyword:   keyword,
		Platform:  platform,
		CreatedAt: createdAt.UTC(),
	}, nil
}

// DedupeKey is the (sourceUrl, platform) pair the store enforces uniqueness on.
// Posts without a stable URL return an empty key.
func (p CandidatePost) DedupeKey() string {
	if p.SourceURL == "" {
		return ""
	}
	return string(p.Platform) + "|" + p.SourceURL
}

// Identifier is used in error reports. Newly fetched posts have no store id,
// so the external id or URL stands in.
func (p CandidatePost) Identifier() string {
	if p.ExternalID != "" {
		return p.ExternalID
	}
	return p.SourceURL
}

// AnnotatedPost is a candidate with its sentiment outcome merged on.
type AnnotatedPost struct {
	CandidatePost
	SentimentOutcome
}

// StoredPost is the durable record.
type StoredPost struct {
	ID string `json:"id"`
	AnnotatedPost
	SentimentManual bool      `json:"sentimentManual"`
	FetchedAt       time.Time `json:"fetchedAt"`
}
