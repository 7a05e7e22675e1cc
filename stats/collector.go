package stats

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Laurentiu-Andronache/prawtools/api"
	"github.com/Laurentiu-Andronache/prawtools/models"
)

// Source is the slice of the API client the collector consumes.
type Source interface {
	FetchNewPage(ctx context.Context, subreddit, after string) ([]models.Post, string, error)
	FetchTopPage(ctx context.Context, subreddit, period, after string) ([]models.Post, string, error)
	FetchComments(ctx context.Context, post models.Post) ([]models.Comment, error)
	GetSubmission(ctx context.Context, link string) (models.Post, error)
	MaxListingSize() int
}

// listingPage is one page of a paginated listing.
type listingPage struct {
	posts []models.Post
	next  string
}

// Collector pulls the submissions (and their comment trees) a run reports
// on. Fetches are deliberately serialized: the remote rate limit is a shared
// budget and racing it buys nothing.
type Collector struct {
	source   Source
	selfUser string
	sleep    api.SleepFunc
	log      *logrus.Logger
}

// NewCollector creates a collector. selfUser is the account reports are
// published under; posts by that account whose title carries the report
// prefix are treated as previous reports.
func NewCollector(source Source, selfUser string, log *logrus.Logger) *Collector {
	return &Collector{
		source:   source,
		selfUser: selfUser,
		log:      log,
	}
}

// Result is the outcome of a collection pass. Window holds the real bounds
// observed over the retained posts, not the estimate the pass started from.
type Result struct {
	Posts  []models.Post
	Window models.Window
	Prev   *PreviousReport
}

// CollectWindow walks the newest-first listing and retains every post inside
// the window. Posts younger than the high bound are skipped (grace period);
// the first post at or below the low bound stops the walk entirely, since
// the listing is time-ordered and nothing older can matter.
//
// Previous reports encountered during the walk are excluded from the result;
// when prev was not supplied explicitly, the most recent one's marker raises
// the low bound so the run picks up exactly where that report left off.
func (c *Collector) CollectWindow(ctx context.Context, subreddit string, window models.Window, after string, excludeSelf bool, prev *PreviousReport) (*Result, error) {
	c.log.WithFields(logrus.Fields{
		"subreddit": subreddit,
		"low":       window.Low,
		"high":      window.High,
		"after":     after,
	}).Info("Fetching submissions")

	var retained []models.Post
	pages := 0

	for {
		page, err := api.Call(c.log, c.sleep, func() (listingPage, error) {
			posts, next, err := c.source.FetchNewPage(ctx, subreddit, after)
			return listingPage{posts: posts, next: next}, err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch posts from %s: %w", subreddit, err)
		}
		pages++

		reachedLow := false
		for _, post := range page.posts {
			if post.CreatedUTC > window.High {
				continue
			}
			if post.CreatedUTC <= window.Low {
				reachedLow = true
				break
			}
			if c.isPreviousReport(post) {
				c.log.WithField("title", post.Title).Info("Found previous report")
				if prev == nil {
					if marker, ok := ExtractMarker(post.SelfText); ok {
						if marker > window.Low {
							window.Low = marker
						}
						prev = &PreviousReport{Permalink: post.Permalink, Marker: marker}
					} else {
						c.log.WithField("permalink", post.Permalink).Warn("Previous report has no end marker, ignoring")
					}
				}
				continue
			}
			if excludeSelf && post.IsSelf {
				continue
			}
			retained = append(retained, post)
		}

		if reachedLow || page.next == "" || len(page.posts) == 0 {
			break
		}
		after = page.next
	}

	c.log.WithFields(logrus.Fields{
		"submission_count": len(retained),
		"pages":            pages,
	}).Info("Finished fetching submissions")

	return c.finish(retained, window, prev), nil
}

// CollectTop fetches the subreddit's top listing for the given period, up to
// the listing's maximum depth. Top mode has no time window and is not
// resumable, so no marker handling applies.
func (c *Collector) CollectTop(ctx context.Context, subreddit, period string, excludeSelf bool) (*Result, error) {
	if err := ValidateTopPeriod(period); err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"subreddit": subreddit,
		"period":    period,
	}).Info("Fetching top submissions")

	var retained []models.Post
	after := ""

	for len(retained) < c.source.MaxListingSize() {
		page, err := api.Call(c.log, c.sleep, func() (listingPage, error) {
			posts, next, err := c.source.FetchTopPage(ctx, subreddit, period, after)
			return listingPage{posts: posts, next: next}, err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch top posts from %s: %w", subreddit, err)
		}
		for _, post := range page.posts {
			if excludeSelf && post.IsSelf {
				continue
			}
			retained = append(retained, post)
		}
		if page.next == "" || len(page.posts) == 0 {
			break
		}
		after = page.next
	}

	if len(retained) > c.source.MaxListingSize() {
		retained = retained[:c.source.MaxListingSize()]
	}

	c.log.WithField("submission_count", len(retained)).Info("Finished fetching top submissions")

	return c.finish(retained, models.Window{}, nil), nil
}

// finish sorts the retained posts chronologically and replaces the estimated
// window bounds with the real ones for display.
func (c *Collector) finish(retained []models.Post, window models.Window, prev *PreviousReport) *Result {
	if len(retained) == 0 {
		return &Result{Window: window, Prev: prev}
	}

	sort.Slice(retained, func(i, j int) bool {
		return retained[i].CreatedUTC < retained[j].CreatedUTC
	})
	window.Low = retained[0].CreatedUTC
	window.High = retained[len(retained)-1].CreatedUTC

	return &Result{Posts: retained, Window: window, Prev: prev}
}

func (c *Collector) isPreviousReport(post models.Post) bool {
	return c.selfUser != "" &&
		post.Author.Exists &&
		post.Author.Name == c.selfUser &&
		strings.HasPrefix(post.Title, PostPrefix)
}

// ResolvePrev fetches an explicitly supplied previous report and extracts
// its continuation marker. A missing marker is fatal: the linked submission
// was not produced by this tool, or was mangled.
func (c *Collector) ResolvePrev(ctx context.Context, link string) (*PreviousReport, error) {
	post, err := api.Call(c.log, c.sleep, func() (models.Post, error) {
		return c.source.GetSubmission(ctx, link)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch previous report: %w", err)
	}

	marker, ok := ExtractMarker(post.SelfText)
	if !ok {
		return nil, fmt.Errorf("end marker not found in previous report %s", link)
	}

	return &PreviousReport{Permalink: post.Permalink, Marker: marker}, nil
}

// FetchAllComments fetches the comment tree of every post with comments, one
// post at a time in listing order. A failure on one post is logged and
// skipped so the rest of the collection survives.
func (c *Collector) FetchAllComments(ctx context.Context, posts []models.Post) []models.Comment {
	var comments []models.Comment

	for i, post := range posts {
		if post.NumComments == 0 {
			continue
		}

		c.log.WithFields(logrus.Fields{
			"post_id":  post.ID,
			"progress": fmt.Sprintf("%d/%d", i+1, len(posts)),
		}).Debug("Fetching comments")

		fetched, err := api.Call(c.log, c.sleep, func() ([]models.Comment, error) {
			return c.source.FetchComments(ctx, post)
		})
		if err != nil {
			c.log.WithError(err).WithField("post_id", post.ID).Error("Failed to fetch comments, skipping post")
			continue
		}
		comments = append(comments, fetched...)
	}

	c.log.WithField("comment_count", len(comments)).Info("Finished fetching comments")
	return comments
}
