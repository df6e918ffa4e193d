package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-audit/pkg/models"
	"site-audit/pkg/utils"
)

func TestEvaluate_ContractViolation(t *testing.T) {
	e := NewEngine(nil, nil, "", nil, quietEntry())

	rc := testContext(healthyPage("https://s.test/"))
	rc.Graph = nil

	_, err := e.Evaluate(context.Background(), rc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrContractViolation))
}

func TestEvaluate_ConsolidatesAndSorts(t *testing.T) {
	var events []models.ProgressEvent
	e := NewEngine(nil, nil, "", func(ev models.ProgressEvent) { events = append(events, ev) }, quietEntry())

	// two pages sharing a title produce per-page and site-wide issues
	a := healthyPage("https://s.test/a")
	b := healthyPage("https://s.test/b")
	a.Title, b.Title = "", ""
	a.Headings, b.Headings = nil, nil

	issues, err := e.Evaluate(context.Background(), testContext(a, b))
	require.NoError(t, err)

	missing := 0
	for _, issue := range issues {
		if issue.ID == "title_missing" {
			missing++
			assert.Equal(t, []string{"https://s.test/a", "https://s.test/b"}, issue.AffectedURLs)
		}
	}
	assert.Equal(t, 1, missing, "identical per-page issues consolidate into one")

	for i := 1; i < len(issues); i++ {
		prev, cur := issues[i-1], issues[i]
		if models.SeverityWeight(prev.Severity) == models.SeverityWeight(cur.Severity) {
			assert.GreaterOrEqual(t, prev.Rank, cur.Rank, "rank descending within a severity band")
		} else {
			assert.Greater(t, models.SeverityWeight(prev.Severity), models.SeverityWeight(cur.Severity))
		}
	}

	require.NotEmpty(t, events)
	assert.Equal(t, "rules", events[0].Stage)
	assert.Equal(t, float64(100), events[len(events)-1].Percent)
}
