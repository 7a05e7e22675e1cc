package stats

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Laurentiu-Andronache/prawtools/api"
)

// Submitter is the slice of the API client the publisher needs.
type Submitter interface {
	Submit(ctx context.Context, subreddit, title, text string) (string, error)
	Username() string
}

// ConfirmFunc asks the user for an explicit go-ahead and reports the answer.
type ConfirmFunc func(prompt string) bool

// StdinConfirm prompts on stdout and reads the answer from stdin. Only "y"
// and "yes" count as affirmative.
func StdinConfirm(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// Publisher submits an assembled report, or prints it when submission is not
// possible or not wanted.
type Publisher struct {
	submitter Submitter
	confirm   ConfirmFunc
	sleep     api.SleepFunc
	out       io.Writer
	log       *logrus.Logger
}

// NewPublisher creates a publisher. confirm guards interactive submission;
// pass StdinConfirm for a real terminal.
func NewPublisher(submitter Submitter, confirm ConfirmFunc, out io.Writer, log *logrus.Logger) *Publisher {
	return &Publisher{
		submitter: submitter,
		confirm:   confirm,
		out:       out,
		log:       log,
	}
}

// Publish submits the report to the given subreddit after confirmation and
// returns the new post's URL. In debug mode, for oversize reports, on a
// declined confirmation, or when submission fails, the report is printed
// instead and the returned URL is empty.
func (p *Publisher) Publish(ctx context.Context, subreddit string, report Report, debug bool) string {
	switch {
	case report.Oversize:
		p.log.Warn("The resulting report is too big. Not submitting.")
	case debug:
		p.log.Debug("Debug mode, not submitting")
	default:
		prompt := fmt.Sprintf("You are about to submit to subreddit %s as %s.\nAre you sure? yes/[no]: ",
			subreddit, p.submitter.Username())
		if !p.confirm(prompt) {
			p.log.Info("Submission aborted")
			break
		}

		permalink, err := api.Call(p.log, p.sleep, func() (string, error) {
			return p.submitter.Submit(ctx, subreddit, report.Title, report.Body)
		})
		if err != nil {
			p.log.WithError(err).Error("The submission failed")
			break
		}

		fmt.Fprintln(p.out, permalink)
		return permalink
	}

	fmt.Fprintln(p.out, report.Title)
	fmt.Fprintln(p.out, report.Body)
	return ""
}
