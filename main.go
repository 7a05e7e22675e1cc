package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Laurentiu-Andronache/prawtools/api"
	"github.com/Laurentiu-Andronache/prawtools/db"
	"github.com/Laurentiu-Andronache/prawtools/models"
	"github.com/Laurentiu-Andronache/prawtools/stats"
	"github.com/Laurentiu-Andronache/prawtools/utils"
)

const (
	exitOK      = 0
	exitFatal   = 1
	exitNoPosts = 2

	// Fixed section sizes; only the submitters section is elastic.
	numTopSubmissions = 5
	numTopComments    = 5
)

func main() {
	os.Exit(run())
}

func run() int {
	envPath := flag.String("env", ".env", "Path to .env file")
	logLevel := flag.String("log-level", "info", "Logging level (debug, info, warn, error)")
	submitters := flag.Int("submitters", 5, "Number of top submitters to display")
	commenters := flag.Int("commenters", 10, "Number of top commenters to display")
	days := flag.Int("days", 32, "Number of previous days to include submissions from. Use 0 for unlimited")
	after := flag.String("after", "", "Submission fullname to fetch after")
	top := flag.String("top", "", "Run on top submissions by day, week, month, year, or all")
	noSelf := flag.Bool("no-self", false, "Do not include self posts (and their comments)")
	prevURL := flag.String("prev", "", "URL of the previous report to continue from")
	debug := flag.Bool("debug", false, "Debug mode: print the report instead of submitting it")
	submissionReddit := flag.String("submission-reddit", "", "Subreddit to submit the report to (default: the subreddit processed)")
	history := flag.Int("history", 0, "Print the n most recent archived reports for the subreddit and exit")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: prawtools [options] subreddit")
		flag.PrintDefaults()
		return exitFatal
	}
	subreddit := flag.Arg(0)

	log := setupLogger(*logLevel)
	log.WithField("subreddit", subreddit).Info("Starting Subreddit Stats")

	config, err := utils.LoadConfig(*envPath, log)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		return exitFatal
	}

	if *history > 0 {
		return printHistory(config, subreddit, *history, log)
	}

	if config.Reddit.Username == "" && !*debug {
		log.Warn("No REDDIT_USERNAME configured, cannot submit; forcing debug mode")
		*debug = true
	}

	client := api.NewClient(
		config.Reddit.ClientID,
		config.Reddit.ClientSecret,
		config.Reddit.Username,
		config.Reddit.Password,
		config.Reddit.UserAgent,
		log,
	)

	ctx := context.Background()
	collector := stats.NewCollector(client, config.Reddit.Username, log)

	var prev *stats.PreviousReport
	if *prevURL != "" {
		prev, err = collector.ResolvePrev(ctx, *prevURL)
		if err != nil {
			log.WithError(err).Error("Failed to resolve previous report")
			return exitFatal
		}
	}

	var result *stats.Result
	if *top != "" {
		result, err = collector.CollectTop(ctx, subreddit, *top, *noSelf)
	} else {
		window := stats.ResolveWindow(*days, time.Now())
		if prev != nil && prev.Marker > window.Low {
			window.Low = prev.Marker
		}
		result, err = collector.CollectWindow(ctx, subreddit, window, *after, *noSelf, prev)
	}
	if err != nil {
		log.WithError(err).Error("Collection failed")
		return exitFatal
	}

	if len(result.Posts) == 0 {
		log.Info("No submissions were found")
		return exitNoPosts
	}

	// Top mode does no marker scanning, but an explicitly supplied previous
	// report still gets its back-link.
	if result.Prev == nil {
		result.Prev = prev
	}

	var comments []models.Comment
	if *commenters > 0 {
		comments = collector.FetchAllComments(ctx, result.Posts)
	}

	assembler := &stats.Assembler{
		Subreddit:  subreddit,
		Posts:      result.Posts,
		Comments:   comments,
		Submitters: stats.GroupPosts(result.Posts),
		Commenters: stats.GroupComments(comments),
		Window:     result.Window,
		Prev:       result.Prev,
		TopMode:    *top != "",
		Log:        log,
	}
	report := assembler.Assemble(*submitters, *commenters, numTopSubmissions, numTopComments)

	target := subreddit
	if *submissionReddit != "" {
		target = *submissionReddit
	}

	publisher := stats.NewPublisher(client, stats.StdinConfirm, os.Stdout, log)
	permalink := publisher.Publish(ctx, target, report, *debug)

	if permalink != "" && config.Archive.Path != "" {
		archiveReport(config.Archive.Path, subreddit, report, permalink, log)
	}

	return exitOK
}

// archiveReport stores a published report in the local archive. Failure is
// logged and swallowed; the report is already live.
func archiveReport(path, subreddit string, report stats.Report, permalink string, log *logrus.Logger) {
	archive, err := db.NewArchive(path, log)
	if err != nil {
		log.WithError(err).Error("Failed to open report archive")
		return
	}
	defer archive.Close()

	err = archive.SaveReport(&models.ArchivedReport{
		Subreddit: subreddit,
		Title:     report.Title,
		Permalink: permalink,
		Marker:    report.Marker,
		Body:      report.Body,
		CreatedAt: time.Now(),
	})
	if err != nil {
		log.WithError(err).Error("Failed to archive report")
	}
}

// printHistory prints the most recent archived reports for the subreddit.
func printHistory(config *utils.Config, subreddit string, limit int, log *logrus.Logger) int {
	if config.Archive.Path == "" {
		log.Error("ARCHIVE_PATH is not configured, no history available")
		return exitFatal
	}

	archive, err := db.NewArchive(config.Archive.Path, log)
	if err != nil {
		log.WithError(err).Error("Failed to open report archive")
		return exitFatal
	}
	defer archive.Close()

	reports, err := archive.RecentReports(subreddit, limit)
	if err != nil {
		log.WithError(err).Error("Failed to read report archive")
		return exitFatal
	}

	for _, report := range reports {
		fmt.Printf("%s  %s  %s\n",
			report.CreatedAt.Format("2006-01-02 15:04"), report.Permalink, report.Title)
	}
	return exitOK
}

// setupLogger sets up the logger with the specified log level
func setupLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}
