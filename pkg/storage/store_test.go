package storage

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-audit/pkg/models"
)

func testStore(t *testing.T) *RunStore {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	store, err := NewRunStore(t.TempDir(), "example.com", logger.WithField("component", "storage"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleReport(runID, startURL string, score int, finishedAt time.Time) *models.Report {
	return &models.Report{
		RunID:      runID,
		FinishedAt: finishedAt,
		Inputs:     models.RunInputs{StartURL: startURL, Coverage: "full", MaxPages: 50},
		Summary:    models.Summary{Score: score, PagesCrawled: 7},
		Issues: []models.Issue{
			{ID: "title_length", Severity: models.SeverityWarning, Title: "Title length out of range",
				AffectedURLs: []string{startURL}},
		},
	}
}

func TestSaveAndGetReport(t *testing.T) {
	store := testStore(t)
	report := sampleReport("run-1", "https://example.com/", 88, time.Now().UTC())

	require.NoError(t, store.SaveReport(report))

	restored, err := store.GetReport("run-1")
	require.NoError(t, err)
	assert.Equal(t, report.RunID, restored.RunID)
	assert.Equal(t, 88, restored.Summary.Score)
	require.Len(t, restored.Issues, 1)
	assert.Equal(t, "title_length", restored.Issues[0].ID)
}

func TestGetReportNotFound(t *testing.T) {
	store := testStore(t)
	_, err := store.GetReport("no-such-run")
	assert.Error(t, err)
}

func TestListRunsOrdering(t *testing.T) {
	store := testStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveReport(sampleReport("run-old", "https://example.com/", 70, base)))
	require.NoError(t, store.SaveReport(sampleReport("run-new", "https://example.com/", 90, base.Add(time.Hour))))
	require.NoError(t, store.SaveReport(sampleReport("run-mid", "https://other.example.com/", 80, base.Add(30*time.Minute))))

	runs, err := store.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-new", runs[0].RunID)
	assert.Equal(t, "run-mid", runs[1].RunID)
	assert.Equal(t, "run-old", runs[2].RunID)
	assert.Equal(t, 1, runs[0].IssueCount)
}

func TestLatestRunIDFiltersByStartURL(t *testing.T) {
	store := testStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveReport(sampleReport("run-a", "https://example.com/", 70, base)))
	require.NoError(t, store.SaveReport(sampleReport("run-b", "https://other.example.com/", 90, base.Add(time.Hour))))

	runID, err := store.LatestRunID("https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "run-a", runID)

	runID, err = store.LatestRunID("https://unknown.example.com/")
	require.NoError(t, err)
	assert.Empty(t, runID)
}

func TestSaveReportOverwrite(t *testing.T) {
	store := testStore(t)
	now := time.Now().UTC()

	require.NoError(t, store.SaveReport(sampleReport("run-1", "https://example.com/", 50, now)))
	require.NoError(t, store.SaveReport(sampleReport("run-1", "https://example.com/", 60, now)))

	restored, err := store.GetReport("run-1")
	require.NoError(t, err)
	assert.Equal(t, 60, restored.Summary.Score)

	runs, err := store.ListRuns()
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
