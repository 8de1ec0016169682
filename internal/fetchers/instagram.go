package fetchers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/spacesedan/brandpulse/internal/models"
)

const instagramMediaFields = "id,caption,media_type,media_url,permalink,timestamp,like_count,comments_count"

// InstagramFetcher resolves the keyword to a hashtag, then reads the
// hashtag's recent media.
type InstagramFetcher struct {
	baseURL     string
	accessToken string
	userID      string
	client      *http.Client
	policy      retrypolicy.RetryPolicy[*http.Response]
}

func NewInstagramFetcher(accessToken, userID, baseURL string) *InstagramFetcher {
	if baseURL == "" {
		baseURL = GRAPH_API_URL
	}
	return &InstagramFetcher{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		userID:      userID,
		client:      defaultHTTPClient(),
		policy:      defaultPolicy(),
	}
}

func (inf *InstagramFetcher) Fetch(ctx context.Context, keyword string, opts FetchOptions) []models.CandidatePost {
	tag := Hashtag(keyword)
	if tag == "" {
		return nil
	}

	params := url.Values{}
	params.Set("user_id", inf.userID)
	params.Set("q", tag)
	params.Set("access_token", inf.accessToken)

	var search models.InstagramHashtagSearchResponse
	if err := getJSON(ctx, inf.client, inf.policy, inf.baseURL+"/ig_hashtag_search?"+params.Encode(), nil, &search); err != nil {
		slog.Error("[InstagramFetcher] Hashtag search failed",
			slog.String("hashtag", tag),
			slog.String("error", err.Error()))
		return nil
	}
	if search.Error != nil || len(search.Data) == 0 {
		slog.Warn("[InstagramFetcher] Hashtag not found",
			slog.String("hashtag", tag))
		return nil
	}

	params = url.Values{}
	params.Set("user_id", inf.userID)
	params.Set("fields", instagramMediaFields)
	params.Set("limit", "50")
	params.Set("access_token", inf.accessToken)

	var media models.InstagramMediaResponse
	endpoint := inf.baseURL + "/" + url.PathEscape(search.Data[0].ID) + "/recent_media?" + params.Encode()
	if err := getJSON(ctx, inf.client, inf.policy, endpoint, nil, &media); err != nil {
		slog.Error("[InstagramFetcher] Recent media request failed",
			slog.String("hashtag", tag),
			slog.String("error", err.Error()))
		return nil
	}

	posts := make([]models.CandidatePost, 0, len(media.Data))
	for _, m := range media.Data {
		created, err := time.Parse(graphTimeLayout, m.Timestamp)
		if err != nil || !opts.InWindow(created) {
			continue
		}
		if !MatchesFilters(m.Caption, opts.Include, opts.Exclude) {
			continue
		}
		post, err := models.NewCandidatePost(keyword, models.PlatformInstagram, created)
		if err != nil {
			continue
		}
		post.Author = models.Author{Name: "#" + tag}
		post.Content = models.Content{Text: m.Caption, MediaURL: m.MediaURL}
		post.Metrics = models.Metrics{Likes: m.LikeCount, Comments: m.CommentsCount}
		post.SourceURL = m.Permalink
		post.ExternalID = m.ID
		posts = append(posts, post)
	}

	slog.Info("[InstagramFetcher] Fetched media",
		slog.String("hashtag", tag),
		slog.Int("count", len(posts)))
	return posts
}

// Hashtag lowercases keyword and drops everything that cannot appear in a tag.
func Hashtag(keyword string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(keyword) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
