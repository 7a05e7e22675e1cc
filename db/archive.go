package db

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/Laurentiu-Andronache/prawtools/models"
)

// Archive stores published reports locally. It is an audit trail only;
// resumption always reads the continuation marker from the published report
// text, never from here.
type Archive struct {
	db    *sql.DB
	mutex sync.RWMutex
	log   *logrus.Logger
}

// NewArchive opens (or creates) the archive database at the given path.
func NewArchive(path string, log *logrus.Logger) (*Archive, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping archive database: %w", err)
	}

	archive := &Archive{
		db:  db,
		log: log,
	}

	if err := archive.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return archive, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.db.Close()
}

// initTables creates the necessary tables if they don't exist
func (a *Archive) initTables() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	query := `
	CREATE TABLE IF NOT EXISTS reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		subreddit TEXT NOT NULL,
		title TEXT NOT NULL,
		permalink TEXT NOT NULL,
		marker REAL NOT NULL,
		body TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_subreddit ON reports(subreddit, created_at DESC);
	`

	_, err := a.db.Exec(query)
	return err
}

// SaveReport records a published report.
func (a *Archive) SaveReport(report *models.ArchivedReport) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	query := `
	INSERT INTO reports (subreddit, title, permalink, marker, body, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := a.db.Exec(
		query,
		report.Subreddit, report.Title, report.Permalink,
		report.Marker, report.Body, report.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		report.ID = id
	}

	a.log.WithFields(logrus.Fields{
		"subreddit": report.Subreddit,
		"permalink": report.Permalink,
	}).Info("Archived published report")

	return nil
}

// RecentReports returns the most recent archived reports for a subreddit,
// newest first.
func (a *Archive) RecentReports(subreddit string, limit int) ([]models.ArchivedReport, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	query := `
	SELECT id, subreddit, title, permalink, marker, body, created_at
	FROM reports
	WHERE subreddit = ?
	ORDER BY created_at DESC
	LIMIT ?
	`

	rows, err := a.db.Query(query, subreddit, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent reports: %w", err)
	}
	defer rows.Close()

	reports := make([]models.ArchivedReport, 0, limit)
	for rows.Next() {
		var report models.ArchivedReport
		var createdAt string

		err := rows.Scan(
			&report.ID, &report.Subreddit, &report.Title, &report.Permalink,
			&report.Marker, &report.Body, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		report.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		reports = append(reports, report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return reports, nil
}
