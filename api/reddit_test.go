package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/Laurentiu-Andronache/prawtools/models"
)

func testPost(id, name, title string) models.Post {
	return models.Post{ID: id, Name: name, Title: title, NumComments: 1}
}

func newTestClient(server *httptest.Server) *Client {
	client := NewClient("id", "secret", "statsbot", "hunter2", "test-agent", testLogger())
	client.baseURL = server.URL
	client.authURL = server.URL + "/api/v1/access_token"
	client.limiter = rate.NewLimiter(rate.Inf, 1)
	return client
}

func authHandler(w http.ResponseWriter, r *http.Request) bool {
	if r.URL.Path != "/api/v1/access_token" {
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"access_token":"token","expires_in":3600,"token_type":"bearer"}`))
	return true
}

func TestFetchNewPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authHandler(w, r) {
			return
		}
		assert.Equal(t, "/r/golang/new.json", r.URL.Path)
		assert.Equal(t, "t3_last", r.URL.Query().Get("after"))
		w.Write([]byte(`{
			"kind": "Listing",
			"data": {
				"after": "t3_next",
				"children": [
					{"kind": "t3", "data": {
						"id": "abc", "name": "t3_abc", "title": "Go 1.23 released",
						"author": "gopher", "subreddit": "golang",
						"url": "https://go.dev/blog", "created_utc": 1700000000,
						"ups": 120, "downs": 4, "score": 116, "num_comments": 37,
						"is_self": false, "permalink": "/r/golang/comments/abc/go_123_released/"
					}},
					{"kind": "t3", "data": {
						"id": "def", "name": "t3_def", "title": "Weekly thread",
						"author": "[deleted]", "subreddit": "golang",
						"url": "https://reddit.com/r/golang/comments/def/weekly_thread/",
						"created_utc": 1699990000,
						"ups": 10, "downs": 1, "score": 9, "num_comments": 2,
						"is_self": true, "selftext": "discuss", "permalink": "/r/golang/comments/def/weekly_thread/"
					}}
				]
			}
		}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	posts, after, err := client.FetchNewPage(context.Background(), "golang", "t3_last")
	require.NoError(t, err)

	assert.Equal(t, "t3_next", after)
	require.Len(t, posts, 2)

	assert.Equal(t, "abc", posts[0].ID)
	assert.Equal(t, "gopher", posts[0].Author.Name)
	assert.True(t, posts[0].Author.Exists)
	assert.Equal(t, 116, posts[0].Score)
	assert.False(t, posts[0].IsSelf)

	assert.False(t, posts[1].Author.Exists)
	assert.True(t, posts[1].IsSelf)
	assert.Equal(t, "discuss", posts[1].SelfText)
}

func TestFetchTopPagePeriod(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authHandler(w, r) {
			return
		}
		assert.Equal(t, "/r/golang/top.json", r.URL.Path)
		assert.Equal(t, "month", r.URL.Query().Get("t"))
		w.Write([]byte(`{"kind":"Listing","data":{"after":"","children":[]}}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	posts, after, err := client.FetchTopPage(context.Background(), "golang", "month", "")
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Empty(t, after)
}

func TestFetchComments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authHandler(w, r) {
			return
		}
		switch r.URL.Path {
		case "/comments/abc.json":
			w.Write([]byte(`[
				{"kind": "Listing", "data": {"children": [
					{"kind": "t3", "data": {"id": "abc", "title": "Go 1.23 released"}}
				]}},
				{"kind": "Listing", "data": {"children": [
					{"kind": "t1", "data": {
						"id": "c1", "author": "alice", "created_utc": 1700000100,
						"ups": 10, "downs": 2, "permalink": "/r/golang/comments/abc/_/c1/",
						"replies": {"kind": "Listing", "data": {"children": [
							{"kind": "t1", "data": {
								"id": "c2", "author": "bob", "created_utc": 1700000200,
								"ups": 3, "downs": 0, "permalink": "/r/golang/comments/abc/_/c2/",
								"replies": ""
							}}
						]}}
					}},
					{"kind": "more", "data": {"children": ["c3", "c4"]}}
				]}}
			]`))
		case "/api/morechildren.json":
			assert.Equal(t, "t3_abc", r.URL.Query().Get("link_id"))
			assert.Equal(t, "c3,c4", r.URL.Query().Get("children"))
			w.Write([]byte(`{"json": {"data": {"things": [
				{"kind": "t1", "data": {
					"id": "c3", "author": "carol", "created_utc": 1700000300,
					"ups": 1, "downs": 0, "permalink": "/r/golang/comments/abc/_/c3/",
					"replies": ""
				}},
				{"kind": "t1", "data": {
					"id": "c4", "author": "[deleted]", "created_utc": 1700000400,
					"ups": 0, "downs": 1, "permalink": "/r/golang/comments/abc/_/c4/",
					"replies": ""
				}}
			]}}}`))
		default:
			t.Errorf("unexpected request path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestClient(server)
	post := testPost("abc", "t3_abc", "Go 1.23 released")
	comments, err := client.FetchComments(context.Background(), post)
	require.NoError(t, err)

	require.Len(t, comments, 4)
	assert.Equal(t, "c1", comments[0].ID)
	assert.Equal(t, "c2", comments[1].ID)
	assert.Equal(t, "c3", comments[2].ID)
	assert.False(t, comments[3].Author.Exists)
	for _, comment := range comments {
		assert.Equal(t, "Go 1.23 released", comment.PostTitle)
	}
	assert.Equal(t, 8, comments[0].Score())
}

func TestSubmitSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authHandler(w, r) {
			return
		}
		assert.Equal(t, "/api/submit", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "self", r.PostForm.Get("kind"))
		assert.Equal(t, "golang", r.PostForm.Get("sr"))
		w.Write([]byte(`{"json": {"errors": [], "data": {
			"url": "https://www.reddit.com/r/golang/comments/xyz/subreddit_stats/",
			"id": "xyz", "name": "t3_xyz"
		}}}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	url, err := client.Submit(context.Background(), "golang", "Subreddit Stats: golang", "body")
	require.NoError(t, err)
	assert.Contains(t, url, "/comments/xyz/")
}

func TestSubmitRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authHandler(w, r) {
			return
		}
		w.Write([]byte(`{"json": {
			"errors": [["RATELIMIT", "you are doing that too much. try again in 9 minutes.", "ratelimit"]],
			"ratelimit": 540.0
		}}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.Submit(context.Background(), "golang", "title", "body")
	require.Error(t, err)

	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, 540*time.Second, rle.SleepTime)
}

func TestSubmitErrorBatch(t *testing.T) {
	err := submitErrors([][]string{
		{"SUBREDDIT_NOEXIST", "that subreddit doesn't exist", "sr"},
		{"NO_TEXT", "we need something here", "title"},
	}, 0)

	var list *APIErrorList
	require.ErrorAs(t, err, &list)
	assert.Len(t, list.Errors, 2)

	var rle *RateLimitError
	assert.False(t, errors.As(err, &rle))
}

func TestHTTP429BecomesRateLimitError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authHandler(w, r) {
			return
		}
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server)
	_, _, err := client.FetchNewPage(context.Background(), "golang", "")
	require.Error(t, err)

	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, 30*time.Second, rle.SleepTime)
}

func TestGetHeaderAsInt(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string][]string
		key      string
		expected int
	}{
		{
			name:     "Valid integer header",
			headers:  map[string][]string{"Retry-After": {"42"}},
			key:      "Retry-After",
			expected: 42,
		},
		{
			name:     "Empty header value",
			headers:  map[string][]string{"Retry-After": {""}},
			key:      "Retry-After",
			expected: 0,
		},
		{
			name:     "Missing header",
			headers:  map[string][]string{"X-Other": {"10"}},
			key:      "Retry-After",
			expected: 0,
		},
		{
			name:     "Non-integer header value",
			headers:  map[string][]string{"Retry-After": {"not-a-number"}},
			key:      "Retry-After",
			expected: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			header := http.Header(tc.headers)
			result := getHeaderAsInt(header, tc.key)
			if result != tc.expected {
				t.Errorf("getHeaderAsInt(%v, %q) = %d; want %d",
					header, tc.key, result, tc.expected)
			}
		})
	}
}
