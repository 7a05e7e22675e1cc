package models

import "time"

// Author identifies the account behind a post or comment. Deleted accounts
// come back from the API as the literal string "[deleted]"; they are kept in
// raw totals but never grouped or ranked.
type Author struct {
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
}

// AuthorFromAPI converts the author field of an API payload.
func AuthorFromAPI(name string) Author {
	if name == "" || name == "[deleted]" {
		return Author{Exists: false}
	}
	return Author{Name: name, Exists: true}
}

// Post represents a Reddit submission.
type Post struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"` // fullname, e.g. "t3_abc123"
	Title       string  `json:"title"`
	Author      Author  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	URL         string  `json:"url"`
	CreatedUTC  float64 `json:"created_utc"`
	Upvotes     int     `json:"upvotes"`
	Downvotes   int     `json:"downvotes"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	IsSelf      bool    `json:"is_self"`
	SelfText    string  `json:"selftext"`
	Permalink   string  `json:"permalink"`
}

// CreatedAt returns the submission time in UTC.
func (p Post) CreatedAt() time.Time {
	return time.Unix(int64(p.CreatedUTC), 0).UTC()
}

// Comment represents a single comment from a submission's comment tree.
type Comment struct {
	ID         string  `json:"id"`
	Author     Author  `json:"author"`
	CreatedUTC float64 `json:"created_utc"`
	Upvotes    int     `json:"upvotes"`
	Downvotes  int     `json:"downvotes"`
	Permalink  string  `json:"permalink"`
	PostTitle  string  `json:"post_title"`
}

// Score is upvotes minus downvotes. Unlike posts, the comment endpoints do
// not return a stable pre-computed score field, so it is derived here.
func (c Comment) Score() int {
	return c.Upvotes - c.Downvotes
}

// Window bounds the submissions considered by a run. Both bounds are unix
// timestamps in seconds; a retained post satisfies Low < created <= High.
type Window struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports whether a creation timestamp falls inside the window.
func (w Window) Contains(createdUTC float64) bool {
	return createdUTC > w.Low && createdUTC <= w.High
}

// ArchivedReport is a published report as stored in the local archive.
type ArchivedReport struct {
	ID        int64     `json:"id"`
	Subreddit string    `json:"subreddit"`
	Title     string    `json:"title"`
	Permalink string    `json:"permalink"`
	Marker    float64   `json:"marker"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
