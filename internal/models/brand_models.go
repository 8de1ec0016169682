package models

import "errors"

// ErrBrandNotFound is returned by every brand source for an unknown id.
var ErrBrandNotFound = errors.New("brand not found")

type GroupStatus string

const (
	GroupRunning GroupStatus = "running"
	GroupPaused  GroupStatus = "paused"
)

// Brand is the monitored tenant. The flat Keywords/Platforms lists are the
// legacy configuration used when a brand has no keyword groups.
type Brand struct {
	ID              string         `json:"id" yaml:"id"`
	Name            string         `json:"name" yaml:"name"`
	Keywords        []string       `json:"keywords" yaml:"keywords"`
	Platforms       []Platform     `json:"platforms" yaml:"platforms"`
	IncludeKeywords []string       `json:"includeKeywords" yaml:"include_keywords"`
	ExcludeKeywords []string       `json:"excludeKeywords" yaml:"exclude_keywords"`
	Language        string         `json:"language,omitempty" yaml:"language"`
	Country         string         `json:"country,omitempty" yaml:"country"`
	Groups          []KeywordGroup `json:"groups" yaml:"groups"`
}

type KeywordGroup struct {
	ID              string      `json:"id" yaml:"id"`
	BrandID         string      `json:"brandId" yaml:"-"`
	Name            string      `json:"name" yaml:"name"`
	Keywords        []string    `json:"keywords" yaml:"keywords"`
	IncludeKeywords []string    `json:"includeKeywords" yaml:"include_keywords"`
	ExcludeKeywords []string    `json:"excludeKeywords" yaml:"exclude_keywords"`
	Platforms       []Platform  `json:"platforms" yaml:"platforms"`
	Language        string      `json:"language,omitempty" yaml:"language"`
	Country         string      `json:"country,omitempty" yaml:"country"`
	Frequency       Frequency   `json:"frequency" yaml:"frequency"`
	Status          GroupStatus `json:"status" yaml:"status"`
}

func (g KeywordGroup) IsPaused() bool {
	return g.Status == GroupPaused
}

// Execution is one resolved unit of work for a single run. It is derived,
// never persisted.
type Execution struct {
	BrandID   string
	BrandName string
	// GroupID is empty for the synthetic brand-default execution.
	GroupID         string
	GroupName       string
	Keywords        []string
	Platforms       []Platform
	IncludeKeywords []string
	ExcludeKeywords []string
	Language        string
	Country         string
}

// GuardKey identifies the execution for re-entrancy protection. Group ids are
// only unique within a brand, so the brand is part of the key.
func (e Execution) GuardKey() string {
	if e.GroupID == "" {
		return "brand-default:" + e.BrandID
	}
	return "group:" + e.BrandID + "/" + e.GroupID
}
