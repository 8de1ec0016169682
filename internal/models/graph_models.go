package models

// Graph API shapes shared by the Facebook page feed and Instagram hashtag
// adapters.

type GraphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

type FacebookFeedResponse struct {
	Data   []FacebookPost `json:"data"`
	Error  *GraphError    `json:"error,omitempty"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

type FacebookPost struct {
	ID           string `json:"id"`
	Message      string `json:"message"`
	Story        string `json:"story"`
	CreatedTime  string `json:"created_time"`
	PermalinkURL string `json:"permalink_url"`
	FullPicture  string `json:"full_picture"`
	From         struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"from"`
	Shares struct {
		Count int64 `json:"count"`
	} `json:"shares"`
	Reactions struct {
		Summary struct {
			TotalCount int64 `json:"total_count"`
		} `json:"summary"`
	} `json:"reactions"`
	Comments struct {
		Summary struct {
			TotalCount int64 `json:"total_count"`
		} `json:"summary"`
	} `json:"comments"`
}

type InstagramHashtagSearchResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
	Error *GraphError `json:"error,omitempty"`
}

type InstagramMediaResponse struct {
	Data  []InstagramMedia `json:"data"`
	Error *GraphError      `json:"error,omitempty"`
}

type InstagramMedia struct {
	ID            string `json:"id"`
	Caption       string `json:"caption"`
	MediaType     string `json:"media_type"`
	MediaURL      string `json:"media_url"`
	Permalink     string `json:"permalink"`
	Timestamp     string `json:"timestamp"`
	LikeCount     int64  `json:"like_count"`
	CommentsCount int64  `json:"comments_count"`
}
