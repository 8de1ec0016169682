package models

import "time"

// RunSummary is what a brand or group run reports back to its caller. It is
// always populated, even when a phase degraded completely.
type RunSummary struct {
	RunID       string           `json:"runId" dynamodbav:"run_id"`
	BrandID     string           `json:"brandId" dynamodbav:"brand_id"`
	GroupID     string           `json:"groupId,omitempty" dynamodbav:"group_id,omitempty"`
	StartedAt   time.Time        `json:"startedAt" dynamodbav:"started_at"`
	FinishedAt  time.Time        `json:"finishedAt" dynamodbav:"finished_at"`
	Fetched     int              `json:"fetched" dynamodbav:"fetched"`
	PerPlatform map[Platform]int `json:"perPlatformSummary" dynamodbav:"per_platform"`
	Analyzed    int              `json:"analyzed" dynamodbav:"analyzed"`
	Failed      int              `json:"failed" dynamodbav:"failed"`
	Saved       int              `json:"saved" dynamodbav:"saved"`
	Duplicates  int              `json:"duplicates" dynamodbav:"duplicates"`
	Errors      int              `json:"errors" dynamodbav:"errors"`
	// Skipped lists guard keys of executions that were already running.
	Skipped []string `json:"skipped,omitempty" dynamodbav:"skipped,omitempty"`
}

func NewRunSummary(runID, brandID string) RunSummary {
	return RunSummary{
		RunID:       runID,
		BrandID:     brandID,
		StartedAt:   time.Now().UTC(),
		PerPlatform: make(map[Platform]int),
	}
}
