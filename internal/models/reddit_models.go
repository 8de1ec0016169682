package models

// RedditAPIResponse is the listing returned by /search.
type RedditAPIResponse struct {
	Data struct {
		Children []RedditAPIChild `json:"children"`
	} `json:"data"`
}

type RedditAPIChild struct {
	Data RedditLink `json:"data"`
}

// RedditLink holds the fields of a t3 link used to build a CandidatePost.
type RedditLink struct {
	Name           string  `json:"name"`
	Author         string  `json:"author"`
	AuthorFullname string  `json:"author_fullname"`
	Title          string  `json:"title"`
	Selftext       string  `json:"selftext"`
	Permalink      string  `json:"permalink"`
	Thumbnail      string  `json:"thumbnail"`
	Ups            int64   `json:"ups"`
	NumComments    int64   `json:"num_comments"`
	CreatedUTC     float64 `json:"created_utc"`
}
