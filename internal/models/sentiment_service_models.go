package models

// Wire shapes for the scoring service's /analyze and /health endpoints.

type AnalyzeRequest struct {
	Posts []AnalyzeRequestPost `json:"posts"`
}

type AnalyzeRequestPost struct {
	ID        string   `json:"id,omitempty"`
	Content   *Content `json:"content,omitempty"`
	Text      string   `json:"text,omitempty"`
	Title     string   `json:"title,omitempty"`
	Summary   string   `json:"summary,omitempty"`
	Platform  string   `json:"platform,omitempty"`
	Keyword   string   `json:"keyword,omitempty"`
	BrandName string   `json:"brandName,omitempty"`
}

type AnalyzeResponse struct {
	Results []AnalyzeResult `json:"results"`
}

type AnalyzeResult struct {
	ID                  string  `json:"id"`
	Sentiment           string  `json:"sentiment"`
	SentimentScore      float64 `json:"sentimentScore"`
	SentimentConfidence float64 `json:"sentimentConfidence"`
	SentimentAnalyzedAt string  `json:"sentimentAnalyzedAt"`
	SentimentSource     string  `json:"sentimentSource"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	ModelLoaded   bool   `json:"model_loaded"`
	ModelType     string `json:"model_type"`
	Provider      string `json:"provider,omitempty"`
	ModelName     string `json:"model_name,omitempty"`
	APIConfigured bool   `json:"api_configured"`
}
