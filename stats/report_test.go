package stats

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark"

	"github.com/Laurentiu-Andronache/prawtools/models"
)

func scoredPost(id, author, title string, score int) models.Post {
	return models.Post{
		ID:          id,
		Title:       title,
		Author:      models.Author{Name: author, Exists: true},
		URL:         "https://example.com/" + id,
		Score:       score,
		Upvotes:     score + 2,
		Downvotes:   2,
		NumComments: 3,
		Permalink:   "/r/test/comments/" + id + "/title/",
	}
}

func newAssembler(posts []models.Post, comments []models.Comment) *Assembler {
	return &Assembler{
		Subreddit:  "test",
		Posts:      posts,
		Comments:   comments,
		Submitters: GroupPosts(posts),
		Commenters: GroupComments(comments),
		Window:     models.Window{Low: 1700000000, High: 1702000000},
		Log:        testLogger(),
	}
}

func TestAssembleBasicReport(t *testing.T) {
	posts := []models.Post{
		scoredPost("a", "alice", "First post", 100),
		scoredPost("b", "bob_the_builder", "Second post", 50),
	}
	comments := []models.Comment{
		{ID: "c1", Author: models.Author{Name: "carol", Exists: true}, Upvotes: 10, Downvotes: 1,
			Permalink: "/r/test/comments/a/_/c1/", PostTitle: "First post"},
	}

	assembler := newAssembler(posts, comments)
	report := assembler.Assemble(5, 10, 5, 5)

	assert.False(t, report.Oversize)
	assert.Equal(t, "Subreddit Stats: test submissions from 2023-11-14 22:13 UTC to 2023-12-08 01:46 UTC", report.Title)

	assert.Contains(t, report.Body, "||Submissions|%|Comments|%|")
	assert.Contains(t, report.Body, "###Top Submitters' Top Submissions")
	assert.Contains(t, report.Body, "###Top Commenters")
	assert.Contains(t, report.Body, "###Top Submissions")
	assert.Contains(t, report.Body, "###Top Comments")

	// authors render as escaped profile links
	assert.Contains(t, report.Body, `[bob\_the\_builder](/user/bob_the_builder)`)
	assert.Contains(t, report.Body, "[carol](/user/carol)")

	// comment links are shortened with context
	assert.Contains(t, report.Body, "/comments/a/_/c1?context=1")
}

func TestAssembleMarkerRoundTrip(t *testing.T) {
	posts := []models.Post{scoredPost("a", "alice", "Post", 10)}
	assembler := newAssembler(posts, nil)

	report := assembler.Assemble(5, 10, 5, 5)
	marker, found := ExtractMarker(report.Body)
	require.True(t, found)
	assert.Equal(t, float64(int64(assembler.Window.High)), marker)
	assert.Equal(t, assembler.Window.High, report.Marker)
}

func TestAssembleTopMode(t *testing.T) {
	assembler := newAssembler([]models.Post{scoredPost("a", "alice", "Post", 10)}, nil)
	assembler.TopMode = true

	report := assembler.Assemble(5, 10, 5, 5)
	assert.Contains(t, report.Title, "top submissions from")
}

func TestAssemblePreviousReportLink(t *testing.T) {
	assembler := newAssembler([]models.Post{scoredPost("a", "alice", "Post", 10)}, nil)
	assembler.Prev = &PreviousReport{Permalink: "/r/test/comments/old/subreddit_stats/", Marker: 1}

	report := assembler.Assemble(5, 10, 5, 5)
	assert.Contains(t, report.Body, "[Previous Stat](/comments/old/_/)")
}

func TestAssembleEmptyInputNoDivisionByZero(t *testing.T) {
	assembler := newAssembler(nil, nil)

	report := assembler.Assemble(5, 10, 5, 5)
	assert.False(t, report.Oversize)
	assert.Contains(t, report.Body, "__Total__|0||0|\n")
	assert.Contains(t, report.Body, "__Upvotes__|0||0|\n")
	assert.NotContains(t, report.Body, "%%")
}

func TestAssembleShrinksElasticSection(t *testing.T) {
	longTitle := strings.Repeat("long descriptive title ", 5)
	var posts []models.Post
	for submitter := 0; submitter < 10; submitter++ {
		author := fmt.Sprintf("submitter%02d", submitter)
		for i := 0; i < 10; i++ {
			id := fmt.Sprintf("%s_%d", author, i)
			posts = append(posts, scoredPost(id, author, longTitle, 100-i))
		}
	}

	assembler := newAssembler(posts, nil)

	// with the full nesting the body would blow the budget
	full := assembler.basicStats() + assembler.topSubmitters(10, startSubmissionsPerSubmitter) +
		assembler.topSubmissions(5) + assembler.footer()
	require.Greater(t, len(full), MaxBodySize)

	report := assembler.Assemble(10, 10, 5, 5)
	assert.False(t, report.Oversize)
	assert.LessOrEqual(t, len(report.Body), MaxBodySize)
}

func TestAssembleOversizeWhenMinimalRenderingStillTooBig(t *testing.T) {
	hugeTitle := strings.Repeat("x", 3000)
	posts := []models.Post{
		scoredPost("a", "alice", hugeTitle, 50),
		scoredPost("b", "bob", hugeTitle, 40),
		scoredPost("c", "carol", hugeTitle, 30),
		scoredPost("d", "dave", hugeTitle, 20),
		scoredPost("e", "eve", hugeTitle, 10),
	}

	assembler := newAssembler(posts, nil)
	report := assembler.Assemble(5, 10, 5, 5)

	assert.True(t, report.Oversize)
	assert.Greater(t, len(report.Body), MaxBodySize)
}

func TestAssembleBodyIsValidMarkdown(t *testing.T) {
	posts := []models.Post{
		scoredPost("a", "alice_a", "A [bracketed] title", 10),
		scoredPost("b", "bob", "Plain title", 5),
	}
	comments := []models.Comment{
		{ID: "c1", Author: models.Author{Name: "carol", Exists: true}, Upvotes: 3,
			Permalink: "/r/test/comments/a/_/c1/", PostTitle: "A [bracketed] title"},
	}

	report := newAssembler(posts, comments).Assemble(5, 10, 5, 5)

	var out bytes.Buffer
	require.NoError(t, goldmark.Convert([]byte(report.Body), &out))
	assert.NotEmpty(t, out.String())
}

func TestUserLink(t *testing.T) {
	assert.Equal(t, "_deleted_", userLink(models.Author{Exists: false}))
	assert.Equal(t, "[plain](/user/plain)", userLink(models.Author{Name: "plain", Exists: true}))
	assert.Equal(t, `[under\_score](/user/under_score)`, userLink(models.Author{Name: "under_score", Exists: true}))
}

func TestShortPermalink(t *testing.T) {
	tests := []struct {
		name      string
		permalink string
		expected  string
	}{
		{
			name:      "Submission permalink",
			permalink: "/r/golang/comments/abc/some_title/",
			expected:  "/comments/abc/_/",
		},
		{
			name:      "Comment permalink",
			permalink: "/r/golang/comments/abc/some_title/def/",
			expected:  "/comments/abc/_/def?context=1",
		},
		{
			name:      "Full URL",
			permalink: "https://www.reddit.com/r/golang/comments/abc/some_title/",
			expected:  "/comments/abc/_/",
		},
		{
			name:      "No comments segment",
			permalink: "/user/somebody/",
			expected:  "/user/somebody/",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, shortPermalink(tc.permalink))
		})
	}
}

func TestCleanTitle(t *testing.T) {
	assert.Equal(t, "multi line title", cleanTitle(" multi\nline title\n"))
}
