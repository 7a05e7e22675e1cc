package stats

import (
	"sort"

	"github.com/Laurentiu-Andronache/prawtools/models"
)

// GroupPosts groups posts by author name. Posts by deleted accounts are left
// out; they still count toward the raw totals in the report's stats table.
func GroupPosts(posts []models.Post) map[string][]models.Post {
	return groupByAuthor(posts, func(p models.Post) models.Author { return p.Author })
}

// GroupComments groups comments by author name, excluding deleted accounts.
func GroupComments(comments []models.Comment) map[string][]models.Comment {
	return groupByAuthor(comments, func(c models.Comment) models.Author { return c.Author })
}

func groupByAuthor[T any](items []T, author func(T) models.Author) map[string][]T {
	groups := make(map[string][]T)
	for _, item := range items {
		a := author(item)
		if !a.Exists {
			continue
		}
		groups[a.Name] = append(groups[a.Name], item)
	}
	return groups
}

// PostScore ranks posts by the API's pre-computed score field.
func PostScore(p models.Post) int { return p.Score }

// CommentScore ranks comments by upvotes minus downvotes; the comment
// endpoints have no trustworthy score field. This asymmetry with PostScore
// is deliberate.
func CommentScore(c models.Comment) int { return c.Score() }

// AuthorStats is one ranked author together with everything they authored
// and their score total.
type AuthorStats[T any] struct {
	Name  string
	Items []T
	Total int
}

// TopAuthors ranks author groups descending by total score, breaking ties by
// item count (also descending). Ordering beyond those two keys is whatever
// map iteration produced. n <= 0 yields an empty result.
func TopAuthors[T any](groups map[string][]T, n int, score func(T) int) []AuthorStats[T] {
	if n <= 0 {
		return nil
	}

	ranked := make([]AuthorStats[T], 0, len(groups))
	for name, items := range groups {
		total := 0
		for _, item := range items {
			total += score(item)
		}
		ranked = append(ranked, AuthorStats[T]{Name: name, Items: items, Total: total})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Total != ranked[j].Total {
			return ranked[i].Total > ranked[j].Total
		}
		return len(ranked[i].Items) > len(ranked[j].Items)
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}

// TopItems returns the n highest-scoring items, descending. Ties keep their
// natural order. n <= 0 yields an empty result.
func TopItems[T any](items []T, n int, score func(T) int) []T {
	if n <= 0 {
		return nil
	}

	sorted := make([]T, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return score(sorted[i]) > score(sorted[j])
	})

	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}
