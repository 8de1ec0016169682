package fetchers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/spacesedan/brandpulse/internal/models"
)

const (
	GRAPH_API_URL     = "https://graph.facebook.com/v19.0"
	graphTimeLayout   = "2006-01-02T15:04:05-0700"
	facebookPostField = "id,message,story,created_time,permalink_url,full_picture,from,shares,reactions.summary(true).limit(0),comments.summary(true).limit(0)"
)

// FacebookFetcher scans the feeds of a fixed list of pages. The Graph API has
// no public post search, so keyword matching happens client-side.
type FacebookFetcher struct {
	baseURL     string
	accessToken string
	pageIDs     []string
	client      *http.Client
	policy      retrypolicy.RetryPolicy[*http.Response]
}

func NewFacebookFetcher(accessToken string, pageIDs []string, baseURL string) *FacebookFetcher {
	if baseURL == "" {
		baseURL = GRAPH_API_URL
	}
	return &FacebookFetcher{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		pageIDs:     pageIDs,
		client:      defaultHTTPClient(),
		policy:      defaultPolicy(),
	}
}

func (ff *FacebookFetcher) Fetch(ctx context.Context, keyword string, opts FetchOptions) []models.CandidatePost {
	start, end := opts.Window()
	var posts []models.CandidatePost

	for _, pageID := range ff.pageIDs {
		params := url.Values{}
		params.Set("fields", facebookPostField)
		params.Set("since", strconv.FormatInt(start.Unix(), 10))
		params.Set("until", strconv.FormatInt(end.Unix(), 10))
		params.Set("limit", "100")
		params.Set("access_token", ff.accessToken)

		var resp models.FacebookFeedResponse
		endpoint := ff.baseURL + "/" + url.PathEscape(pageID) + "/posts?" + params.Encode()
		if err := getJSON(ctx, ff.client, ff.policy, endpoint, nil, &resp); err != nil {
			slog.Error("[FacebookFetcher] Page feed request failed",
				slog.String("page", pageID),
				slog.String("keyword", keyword),
				slog.String("error", err.Error()))
			continue
		}
		if resp.Error != nil {
			slog.Error("[FacebookFetcher] Graph API error",
				slog.String("page", pageID),
				slog.String("error", resp.Error.Message))
			continue
		}

		for _, fp := range resp.Data {
			text := joinText(fp.Message, fp.Story)
			if !ContainsKeyword(text, keyword) || !MatchesFilters(text, opts.Include, opts.Exclude) {
				continue
			}
			created, err := time.Parse(graphTimeLayout, fp.CreatedTime)
			if err != nil || !opts.InWindow(created) {
				continue
			}
			post, err := models.NewCandidatePost(keyword, models.PlatformFacebook, created)
			if err != nil {
				continue
			}
			post.Author = models.Author{ID: fp.From.ID, Name: fp.From.Name}
			post.Content = models.Content{Text: text, MediaURL: fp.FullPicture}
			post.Metrics = models.Metrics{
				Likes:    fp.Reactions.Summary.TotalCount,
				Comments: fp.Comments.Summary.TotalCount,
				Shares:   fp.Shares.Count,
			}
			post.SourceURL = fp.PermalinkURL
			post.ExternalID = fp.ID
			posts = append(posts, post)
		}
	}

	slog.Info("[FacebookFetcher] Fetched posts",
		slog.String("keyword", keyword),
		slog.Int("pages", len(ff.pageIDs)),
		slog.Int("count", len(posts)))
	return posts
}
