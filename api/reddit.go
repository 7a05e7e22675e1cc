package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Laurentiu-Andronache/prawtools/models"
)

const (
	defaultBaseURL = "https://oauth.reddit.com"
	defaultAuthURL = "https://www.reddit.com/api/v1/access_token"
	pageLimit      = 100  // max number of posts per listing request
	maxListingSize = 1000 // deepest the top listing goes
	commentLimit   = 500  // max comments per tree request
	moreBatchSize  = 100  // max ids per morechildren request
)

// Client is a Reddit API client. All requests flow through a shared
// rate.Limiter so a run never races the remote allocation (1000 requests per
// rolling 600-second period; we target 95% of that).
type Client struct {
	clientID     string
	clientSecret string
	username     string
	password     string
	userAgent    string
	baseURL      string
	authURL      string
	httpClient   *http.Client
	limiter      *rate.Limiter
	accessToken  string
	tokenExpiry  time.Time
	mutex        sync.RWMutex
	log          *logrus.Logger
}

// NewClient creates a new Reddit API client. Username and password are
// optional; without them the client authenticates app-only and cannot
// submit.
func NewClient(clientID, clientSecret, username, password, userAgent string, log *logrus.Logger) *Client {
	targetRate := (1000.0 / 600.0) * 0.95

	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		username:     username,
		password:     password,
		userAgent:    userAgent,
		baseURL:      defaultBaseURL,
		authURL:      defaultAuthURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		limiter:      rate.NewLimiter(rate.Limit(targetRate), 1),
		log:          log,
	}
}

// Username returns the account the client authenticates as, or "" for
// app-only auth.
func (c *Client) Username() string {
	return c.username
}

// authenticate fetches an OAuth token if the cached one is missing or
// expired. With a username/password pair it uses the password grant so the
// token can submit; otherwise it falls back to client credentials.
func (c *Client) authenticate(ctx context.Context) error {
	c.mutex.RLock()
	token := c.accessToken
	expiry := c.tokenExpiry
	c.mutex.RUnlock()

	if token != "" && time.Now().Before(expiry) {
		return nil
	}

	c.log.Info("Authenticating with Reddit API")

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	data := url.Values{}
	if c.username != "" {
		data.Set("grant_type", "password")
		data.Set("username", c.username)
		data.Set("password", c.password)
	} else {
		c.log.Debug("No username configured, using application-only auth")
		data.Set("grant_type", "client_credentials")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create auth request: %w", err)
	}

	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute auth request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("auth request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var authResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return fmt.Errorf("failed to decode auth response: %w", err)
	}

	c.mutex.Lock()
	c.accessToken = authResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(authResp.ExpiresIn) * time.Second)
	c.mutex.Unlock()

	c.log.Info("Successfully authenticated with Reddit API")
	return nil
}

// do runs an authenticated request against the API and returns the response
// body. A 429 is converted to a RateLimitError carrying the Retry-After
// duration so callers can retry through api.Call.
func (c *Client) do(ctx context.Context, method, endpoint string, form url.Values) ([]byte, error) {
	if err := c.authenticate(ctx); err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.mutex.RLock()
	token := c.accessToken
	c.mutex.RUnlock()

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.userAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := getHeaderAsInt(resp.Header, "Retry-After")
		if wait <= 0 {
			wait = 60
		}
		return nil, &RateLimitError{
			Message:   fmt.Sprintf("status 429 from %s", endpoint),
			SleepTime: time.Duration(wait) * time.Second,
		}
	}

	if resp.StatusCode != http.StatusOK {
		c.log.WithFields(logrus.Fields{
			"endpoint":      endpoint,
			"status_code":   resp.StatusCode,
			"response_body": string(body),
		}).Error("Reddit API error response")
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// postThing is the wire structure of a t3 (link) thing.
type postThing struct {
	Kind string `json:"kind"`
	Data struct {
		ID          string  `json:"id"`
		Name        string  `json:"name"`
		Title       string  `json:"title"`
		Author      string  `json:"author"`
		Subreddit   string  `json:"subreddit"`
		URL         string  `json:"url"`
		CreatedUTC  float64 `json:"created_utc"`
		Ups         int     `json:"ups"`
		Downs       int     `json:"downs"`
		Score       int     `json:"score"`
		NumComments int     `json:"num_comments"`
		IsSelf      bool    `json:"is_self"`
		SelfText    string  `json:"selftext"`
		Permalink   string  `json:"permalink"`
	} `json:"data"`
}

func (t postThing) toModel() models.Post {
	return models.Post{
		ID:          t.Data.ID,
		Name:        t.Data.Name,
		Title:       t.Data.Title,
		Author:      models.AuthorFromAPI(t.Data.Author),
		Subreddit:   t.Data.Subreddit,
		URL:         t.Data.URL,
		CreatedUTC:  t.Data.CreatedUTC,
		Upvotes:     t.Data.Ups,
		Downvotes:   t.Data.Downs,
		Score:       t.Data.Score,
		NumComments: t.Data.NumComments,
		IsSelf:      t.Data.IsSelf,
		SelfText:    t.Data.SelfText,
		Permalink:   t.Data.Permalink,
	}
}

// postListing is the wire structure of a paginated listing of posts.
type postListing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string      `json:"after"`
		Before   string      `json:"before"`
		Children []postThing `json:"children"`
	} `json:"data"`
}

func (c *Client) fetchListingPage(ctx context.Context, endpoint string) ([]models.Post, string, error) {
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", err
	}

	var listing postListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, "", fmt.Errorf("failed to decode listing: %w", err)
	}

	posts := make([]models.Post, 0, len(listing.Data.Children))
	for _, thing := range listing.Data.Children {
		posts = append(posts, thing.toModel())
	}

	return posts, listing.Data.After, nil
}

// FetchNewPage fetches one page of a subreddit's newest-first listing.
// Returns the posts and the pagination cursor for the next page ("" when the
// listing is exhausted).
func (c *Client) FetchNewPage(ctx context.Context, subreddit, after string) ([]models.Post, string, error) {
	endpoint := fmt.Sprintf("%s/r/%s/new.json?limit=%d", c.baseURL, subreddit, pageLimit)
	if after != "" {
		endpoint += "&after=" + url.QueryEscape(after)
	}

	c.log.WithFields(logrus.Fields{
		"subreddit": subreddit,
		"after":     after,
	}).Debug("Fetching new listing page")

	return c.fetchListingPage(ctx, endpoint)
}

// FetchTopPage fetches one page of a subreddit's top listing for the given
// period (day, week, month, year, all).
func (c *Client) FetchTopPage(ctx context.Context, subreddit, period, after string) ([]models.Post, string, error) {
	endpoint := fmt.Sprintf("%s/r/%s/top.json?limit=%d&t=%s", c.baseURL, subreddit, pageLimit, url.QueryEscape(period))
	if after != "" {
		endpoint += "&after=" + url.QueryEscape(after)
	}

	c.log.WithFields(logrus.Fields{
		"subreddit": subreddit,
		"period":    period,
		"after":     after,
	}).Debug("Fetching top listing page")

	return c.fetchListingPage(ctx, endpoint)
}

// MaxListingSize is the deepest any listing can be paginated.
func (c *Client) MaxListingSize() int {
	return maxListingSize
}

// GetSubmission fetches a single submission by its permalink or full URL.
func (c *Client) GetSubmission(ctx context.Context, link string) (models.Post, error) {
	path := link
	if u, err := url.Parse(link); err == nil && u.Path != "" {
		path = u.Path
	}
	endpoint := fmt.Sprintf("%s%s.json?limit=1", c.baseURL, strings.TrimSuffix(path, "/"))

	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.Post{}, err
	}

	// The comments endpoint returns a two-element array; the first listing
	// holds the submission itself.
	var listings []postListing
	if err := json.Unmarshal(body, &listings); err != nil {
		return models.Post{}, fmt.Errorf("failed to decode submission: %w", err)
	}
	if len(listings) == 0 || len(listings[0].Data.Children) == 0 {
		return models.Post{}, fmt.Errorf("no submission found at %s", link)
	}

	return listings[0].Data.Children[0].toModel(), nil
}

// commentThing is the wire structure of a t1 (comment) or "more" thing.
// Replies is raw because the API sends either a nested listing or the empty
// string.
type commentThing struct {
	Kind string `json:"kind"`
	Data struct {
		ID         string          `json:"id"`
		Author     string          `json:"author"`
		CreatedUTC float64         `json:"created_utc"`
		Ups        int             `json:"ups"`
		Downs      int             `json:"downs"`
		Permalink  string          `json:"permalink"`
		Replies    json.RawMessage `json:"replies"`
		Children   []string        `json:"children"` // only on kind "more"
	} `json:"data"`
}

type commentListing struct {
	Kind string `json:"kind"`
	Data struct {
		Children []commentThing `json:"children"`
	} `json:"data"`
}

func (t commentThing) toModel(postTitle string) models.Comment {
	return models.Comment{
		ID:         t.Data.ID,
		Author:     models.AuthorFromAPI(t.Data.Author),
		CreatedUTC: t.Data.CreatedUTC,
		Upvotes:    t.Data.Ups,
		Downvotes:  t.Data.Downs,
		Permalink:  t.Data.Permalink,
		PostTitle:  postTitle,
	}
}

// walkComments flattens a comment forest, collecting the ids of "more"
// placeholder nodes for a follow-up overflow fetch.
func walkComments(things []commentThing, postTitle string, comments *[]models.Comment, moreIDs *[]string) {
	for _, thing := range things {
		if thing.Kind == "more" {
			*moreIDs = append(*moreIDs, thing.Data.Children...)
			continue
		}
		if thing.Kind != "t1" {
			continue
		}
		*comments = append(*comments, thing.toModel(postTitle))

		if len(thing.Data.Replies) > 0 && thing.Data.Replies[0] == '{' {
			var replies commentListing
			if err := json.Unmarshal(thing.Data.Replies, &replies); err != nil {
				continue
			}
			walkComments(replies.Data.Children, postTitle, comments, moreIDs)
		}
	}
}

// FetchComments fetches the full comment tree of a post, including the
// overflow comments the API parks behind "more" placeholder nodes.
func (c *Client) FetchComments(ctx context.Context, post models.Post) ([]models.Comment, error) {
	endpoint := fmt.Sprintf("%s/comments/%s.json?limit=%d&sort=top", c.baseURL, post.ID, commentLimit)

	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var listings []commentListing
	if err := json.Unmarshal(body, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode comment tree: %w", err)
	}
	if len(listings) < 2 {
		return nil, fmt.Errorf("unexpected comment response shape for post %s", post.ID)
	}

	var comments []models.Comment
	var moreIDs []string
	walkComments(listings[1].Data.Children, post.Title, &comments, &moreIDs)

	for len(moreIDs) > 0 {
		batch := moreIDs
		if len(batch) > moreBatchSize {
			batch = batch[:moreBatchSize]
		}
		moreIDs = moreIDs[len(batch):]

		overflow, extra, err := c.fetchMoreComments(ctx, post, batch)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch overflow comments: %w", err)
		}
		comments = append(comments, overflow...)
		moreIDs = append(moreIDs, extra...)
	}

	c.log.WithFields(logrus.Fields{
		"post_id":       post.ID,
		"comment_count": len(comments),
	}).Debug("Fetched comment tree")

	return comments, nil
}

// fetchMoreComments resolves a batch of "more" placeholder ids. The response
// can itself contain further "more" nodes; their ids are returned for the
// caller to drain.
func (c *Client) fetchMoreComments(ctx context.Context, post models.Post, ids []string) ([]models.Comment, []string, error) {
	endpoint := fmt.Sprintf("%s/api/morechildren.json?api_type=json&link_id=%s&children=%s",
		c.baseURL, url.QueryEscape(post.Name), url.QueryEscape(strings.Join(ids, ",")))

	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, err
	}

	var envelope struct {
		JSON struct {
			Data struct {
				Things []commentThing `json:"things"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, nil, fmt.Errorf("failed to decode morechildren response: %w", err)
	}

	var comments []models.Comment
	var moreIDs []string
	walkComments(envelope.JSON.Data.Things, post.Title, &comments, &moreIDs)

	return comments, moreIDs, nil
}

// Submit creates a self post and returns its URL. API-level failures come
// back as a RateLimitError or an APIErrorList of typed errors.
func (c *Client) Submit(ctx context.Context, subreddit, title, text string) (string, error) {
	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("kind", "self")
	form.Set("sr", subreddit)
	form.Set("title", title)
	form.Set("text", text)

	body, err := c.do(ctx, http.MethodPost, c.baseURL+"/api/submit", form)
	if err != nil {
		return "", err
	}

	var envelope struct {
		JSON struct {
			Errors    [][]string `json:"errors"`
			RateLimit float64    `json:"ratelimit"`
			Data      struct {
				URL  string `json:"url"`
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("failed to decode submit response: %w", err)
	}

	if len(envelope.JSON.Errors) > 0 {
		return "", submitErrors(envelope.JSON.Errors, envelope.JSON.RateLimit)
	}

	c.log.WithFields(logrus.Fields{
		"subreddit": subreddit,
		"url":       envelope.JSON.Data.URL,
	}).Info("Submitted post")

	return envelope.JSON.Data.URL, nil
}

// submitErrors converts the api_type=json error envelope into typed errors.
func submitErrors(rawErrors [][]string, rateLimit float64) error {
	errs := make([]error, 0, len(rawErrors))
	for _, raw := range rawErrors {
		var code, message, field string
		if len(raw) > 0 {
			code = raw[0]
		}
		if len(raw) > 1 {
			message = raw[1]
		}
		if len(raw) > 2 {
			field = raw[2]
		}

		if code == "RATELIMIT" {
			wait := time.Duration(rateLimit * float64(time.Second))
			if wait <= 0 {
				wait = time.Minute
			}
			errs = append(errs, &RateLimitError{Message: message, SleepTime: wait})
			continue
		}
		errs = append(errs, &FieldError{Code: code, Message: message, Field: field})
	}

	if len(errs) == 1 {
		return errs[0]
	}
	return &APIErrorList{Errors: errs}
}

func getHeaderAsInt(header http.Header, name string) int {
	value := header.Get(name)
	if value == "" {
		return 0
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}

	return intValue
}
