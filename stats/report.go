package stats

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Laurentiu-Andronache/prawtools/models"
)

const (
	// MaxBodySize is the hard byte budget for a report body.
	MaxBodySize = 10000

	// Shrink bounds for the nested submissions-per-submitter list.
	startSubmissionsPerSubmitter = 10
	minSubmissionsPerSubmitter   = 2

	sectionHeader = "---\n###%s\n"
	footerFormat  = ">Generated with [Subreddit Stats](https://github.com/Laurentiu-Andronache/prawtools)  \n%sSRS Marker: %d"
)

// Report is an assembled report, ready to publish or print.
type Report struct {
	Title  string
	Body   string
	Marker float64
	// Oversize is set when even the minimal rendering exceeds MaxBodySize;
	// such a report must never be published, only displayed.
	Oversize bool
}

// Assembler renders the report sections and shrinks the elastic one until
// the body fits the byte budget.
type Assembler struct {
	Subreddit  string
	Posts      []models.Post
	Comments   []models.Comment
	Submitters map[string][]models.Post
	Commenters map[string][]models.Comment
	Window     models.Window
	Prev       *PreviousReport
	TopMode    bool
	Log        *logrus.Logger
}

// Assemble builds the full report. Every section renders once except top
// submitters, which nests up to k submissions per submitter; k starts at 10
// and drops toward 2 while the body exceeds the budget. If the body is still
// over budget at k=2 the report is flagged oversize.
func (a *Assembler) Assemble(numSubmitters, numCommenters, numSubmissions, numComments int) Report {
	topWord := ""
	if a.TopMode {
		topWord = "top "
	}
	title := fmt.Sprintf("%s %s %ssubmissions from %s to %s",
		PostPrefix, a.Subreddit, topWord,
		formatTimestamp(a.Window.Low), formatTimestamp(a.Window.High))

	basic := a.basicStats()
	commenters := a.topCommenters(numCommenters)
	submissions := a.topSubmissions(numSubmissions)
	comments := a.topComments(numComments)
	footer := a.footer()

	k := startSubmissionsPerSubmitter
	body := basic + a.topSubmitters(numSubmitters, k) + commenters + submissions + comments + footer
	for len(body) > MaxBodySize && k > minSubmissionsPerSubmitter {
		k--
		body = basic + a.topSubmitters(numSubmitters, k) + commenters + submissions + comments + footer
	}

	oversize := len(body) > MaxBodySize
	if oversize {
		a.Log.WithFields(logrus.Fields{
			"body_size": len(body),
			"budget":    MaxBodySize,
		}).Warn("Report body exceeds size budget even at minimal rendering")
	}

	return Report{
		Title:    title,
		Body:     body,
		Marker:   a.Window.High,
		Oversize: oversize,
	}
}

// basicStats renders the totals table. Percentages are skipped when their
// denominator is zero.
func (a *Assembler) basicStats() string {
	subUps, subDowns := 0, 0
	for _, p := range a.Posts {
		subUps += p.Upvotes
		subDowns += p.Downvotes
	}
	commUps, commDowns := 0, 0
	for _, c := range a.Comments {
		commUps += c.Upvotes
		commDowns += c.Downvotes
	}

	subUpPerc, subPercOK := percentage(subUps, subUps+subDowns)
	commUpPerc, commPercOK := percentage(commUps, commUps+commDowns)

	rows := []struct {
		label     string
		subValue  int
		subPerc   string
		commValue int
		commPerc  string
	}{
		{"Total", len(a.Posts), "", len(a.Comments), ""},
		{"Unique Redditors", len(a.Submitters), "", len(a.Commenters), ""},
		{"Upvotes", subUps, percString(subUpPerc, subPercOK), commUps, percString(commUpPerc, commPercOK)},
		{"Downvotes", subDowns, percString(100-subUpPerc, subPercOK), commDowns, percString(100-commUpPerc, commPercOK)},
	}

	var b strings.Builder
	b.WriteString("||Submissions|%|Comments|%|\n:-:|--:|--:|--:|--:\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "__%s__|%d|%s|%d|%s\n",
			row.label, row.subValue, row.subPerc, row.commValue, row.commPerc)
	}
	b.WriteString("\n")
	return b.String()
}

// topSubmitters is the elastic section: the top submitters, each with up to
// numSubmissions of their best submissions nested underneath.
func (a *Assembler) topSubmitters(num, numSubmissions int) string {
	ranked := TopAuthors(a.Submitters, num, PostScore)
	if len(ranked) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, sectionHeader, "Top Submitters' Top Submissions")
	for _, submitter := range ranked {
		fmt.Fprintf(&b, "0. %d pts, %d submissions: %s\n",
			submitter.Total, len(submitter.Items), userLink(models.Author{Name: submitter.Name, Exists: true}))
		for _, post := range TopItems(submitter.Items, numSubmissions, PostScore) {
			if post.IsSelf {
				fmt.Fprintf(&b, "  0. %s", cleanTitle(post.Title))
			} else {
				fmt.Fprintf(&b, "  0. [%s](%s)", cleanTitle(post.Title), post.URL)
			}
			fmt.Fprintf(&b, " (%d pts, [%d comments](%s))\n",
				post.Score, post.NumComments, shortPermalink(post.Permalink))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (a *Assembler) topCommenters(num int) string {
	ranked := TopAuthors(a.Commenters, num, CommentScore)
	if len(ranked) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, sectionHeader, "Top Commenters")
	for _, commenter := range ranked {
		fmt.Fprintf(&b, "0. %s (%d pts, %d comments)\n",
			userLink(models.Author{Name: commenter.Name, Exists: true}),
			commenter.Total, len(commenter.Items))
	}
	b.WriteString("\n")
	return b.String()
}

func (a *Assembler) topSubmissions(num int) string {
	top := TopItems(a.Posts, num, PostScore)
	if len(top) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, sectionHeader, "Top Submissions")
	for _, post := range top {
		if post.IsSelf {
			fmt.Fprintf(&b, "0. %s", cleanTitle(post.Title))
		} else {
			fmt.Fprintf(&b, "0. [%s](%s)", cleanTitle(post.Title), post.URL)
		}
		fmt.Fprintf(&b, " by %s (%d pts, [%d comments](%s))\n",
			userLink(post.Author), post.Score, post.NumComments, shortPermalink(post.Permalink))
	}
	b.WriteString("\n")
	return b.String()
}

func (a *Assembler) topComments(num int) string {
	top := TopItems(a.Comments, num, CommentScore)
	if len(top) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, sectionHeader, "Top Comments")
	for _, comment := range top {
		fmt.Fprintf(&b, "0. %d pts: %s's [comment](%s) in %s\n",
			comment.Score(), userLink(comment.Author),
			shortPermalink(comment.Permalink), cleanTitle(comment.PostTitle))
	}
	b.WriteString("\n")
	return b.String()
}

// footer embeds the continuation marker and, when this run continues an
// earlier report, a back-link to it. The marker must stay machine-readable:
// ExtractMarker of the rendered body yields Window.High again.
func (a *Assembler) footer() string {
	prev := ""
	if a.Prev != nil {
		prev = fmt.Sprintf("[Previous Stat](%s)  \n", shortPermalink(a.Prev.Permalink))
	}
	return fmt.Sprintf(footerFormat, prev, int64(a.Window.High))
}

func percentage(part, whole int) (int, bool) {
	if whole == 0 {
		return 0, false
	}
	return part * 100 / whole, true
}

func percString(value int, ok bool) string {
	if !ok {
		return ""
	}
	return fmt.Sprintf("%d%%", value)
}

func formatTimestamp(ts float64) string {
	return time.Unix(int64(ts), 0).UTC().Format("2006-01-02 15:04 MST")
}

// userLink renders an author as a profile link with markdown underscores
// escaped in the display name. Deleted accounts get a fixed sentinel.
func userLink(author models.Author) string {
	if !author.Exists {
		return "_deleted_"
	}
	display := strings.ReplaceAll(author.Name, "_", `\_`)
	return fmt.Sprintf("[%s](/user/%s)", display, author.Name)
}

// shortPermalink compresses a full permalink down to its id components so
// report links stay small: /comments/<id>/_/ for a submission,
// /comments/<id>/_/<cid>?context=1 for a comment.
func shortPermalink(permalink string) string {
	tokens := strings.Split(permalink, "/")
	for i, token := range tokens {
		if token != "comments" || i+1 >= len(tokens) {
			continue
		}
		id := tokens[i+1]
		if i+3 < len(tokens) && tokens[i+3] != "" {
			return fmt.Sprintf("/comments/%s/_/%s?context=1", id, strings.TrimSuffix(tokens[i+3], "/"))
		}
		return fmt.Sprintf("/comments/%s/_/", id)
	}
	return permalink
}

func cleanTitle(title string) string {
	return strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
}
