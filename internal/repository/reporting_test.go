package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YOROBIZ/sentimentiq/internal/model"
)

func TestStatusReport(t *testing.T) {
	repo, _, db := newStaging(t)
	ctx := context.Background()

	a := ingest(t, repo, "a", "Service excellent")
	b := ingest(t, repo, "b", "Chambre sale")
	ingest(t, repo, "c", "Hôtel correct")

	ok, err := repo.Acquire(ctx, a.ID, "w1", baseTime)
	require.NoError(t, err)
	require.True(t, ok)
	analyzed := baseTime.Add(5 * time.Minute)
	require.NoError(t, repo.MarkProcessed(ctx, a.ID, "w1", analyzed))

	for i := 0; i < 3; i++ {
		ok, err := repo.Acquire(ctx, b.ID, "w1", baseTime)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, repo.MarkFailed(ctx, b.ID, "w1", "timeout", baseTime))
	}

	synced := baseTime.Add(time.Minute)
	sources := NewSourceRepository(db)
	require.NoError(t, sources.RecordSync(ctx, "instagram", baseTime, 2))
	require.NoError(t, sources.RecordSync(ctx, "mock", synced, 1))

	report, err := NewStatusReporter(db).Report(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(3), report.Total)
	assert.Len(t, report.Statuses, len(model.AllStatuses))
	assert.Equal(t, int64(1), report.Count(model.StatusPending))
	assert.Equal(t, int64(1), report.Count(model.StatusProcessed))
	assert.Equal(t, int64(1), report.Count(model.StatusFailed))
	assert.Equal(t, int64(0), report.Count(model.StatusDead))

	for _, row := range report.Statuses {
		switch row.Status {
		case model.StatusFailed:
			assert.InDelta(t, 3.0, row.AvgAttempts, 0.001)
		case model.StatusProcessed:
			assert.InDelta(t, 1.0, row.AvgAttempts, 0.001)
		}
	}

	require.NotNil(t, report.LastSyncAt)
	assert.True(t, synced.Equal(*report.LastSyncAt))
	require.NotNil(t, report.LastAnalyzedAt)
	assert.True(t, analyzed.Equal(*report.LastAnalyzedAt))
}

func TestStatusReportEmptyStore(t *testing.T) {
	db := newTestDB(t)

	report, err := NewStatusReporter(db).Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), report.Total)
	assert.Nil(t, report.LastSyncAt)
	assert.Nil(t, report.LastAnalyzedAt)
}

func TestSourceSyncTracking(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	sources := NewSourceRepository(db)

	require.NoError(t, sources.RecordSync(ctx, "gmail", baseTime, 3))
	require.NoError(t, sources.RecordError(ctx, "gmail", baseTime.Add(time.Minute), errors.New("token expired")))
	require.NoError(t, sources.RecordSync(ctx, "gmail", baseTime.Add(2*time.Minute), 2))

	list, err := sources.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.SourceStateConnected, list[0].State)
	assert.Equal(t, int64(5), list[0].ItemsSeen)
	assert.Empty(t, list[0].LastError)
}

func TestFeedbackAppendAndAlerts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	feedbacks := NewFeedbackRepository(db)

	itemID := uint(7)
	for _, fb := range []*model.Feedback{
		{StagedItemID: &itemID, CustomerName: "Paul", Content: "Bruit horrible", Sentiment: model.SentimentNegative, Confidence: 0.8, KeyPhrases: []string{"Général"}},
		{CustomerName: "Léa", Content: "Standard", Sentiment: model.SentimentNeutral, Confidence: 0.5, KeyPhrases: []string{"Général"}},
		{CustomerName: "Emma", Content: "Parfait", Sentiment: model.SentimentPositive, Confidence: 0.9, KeyPhrases: []string{"Service Client", "Hébergement"}},
	} {
		require.NoError(t, feedbacks.Append(ctx, fb))
		assert.NotZero(t, fb.ID)
	}

	all, total, err := feedbacks.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, all, 3)

	var emma model.Feedback
	for _, fb := range all {
		if fb.CustomerName == "Emma" {
			emma = fb
		}
	}
	assert.Equal(t, []string{"Service Client", "Hébergement"}, emma.KeyPhrases)

	alerts, err := feedbacks.Alerts(ctx, 40, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Paul", alerts[0].CustomerName)

	alerts, err = feedbacks.Alerts(ctx, 60, 10)
	require.NoError(t, err)
	assert.Len(t, alerts, 2)

	count, err := feedbacks.CountForItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRuleMatching(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	rules := NewRuleRepository(db)

	anyNegative := &model.AlertRule{Sentiment: model.SentimentNegative, TargetEmail: "ops@example.com", Enabled: true}
	wifi := &model.AlertRule{Sentiment: model.SentimentNegative, Keyword: "WiFi", TargetEmail: "it@example.com", Enabled: true}
	disabled := &model.AlertRule{Sentiment: model.SentimentNegative, TargetEmail: "off@example.com", Enabled: false}
	positive := &model.AlertRule{Sentiment: model.SentimentPositive, TargetEmail: "team@example.com", Enabled: true}
	for _, r := range []*model.AlertRule{anyNegative, wifi, disabled, positive} {
		require.NoError(t, rules.Create(ctx, r))
	}

	stored, err := rules.Get(ctx, disabled.ID)
	require.NoError(t, err)
	assert.False(t, stored.Enabled)

	matched, err := rules.FindMatchingRules(ctx, model.SentimentNegative, "Le wifi ne marchait pas")
	require.NoError(t, err)
	var targets []string
	for _, r := range matched {
		targets = append(targets, r.TargetEmail)
	}
	assert.ElementsMatch(t, []string{"ops@example.com", "it@example.com"}, targets)

	matched, err = rules.FindMatchingRules(ctx, model.SentimentNegative, "Chambre sale")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "ops@example.com", matched[0].TargetEmail)

	require.NoError(t, rules.SetEnabled(ctx, anyNegative.ID, false))
	require.NoError(t, rules.Delete(ctx, wifi.ID))
	matched, err = rules.FindMatchingRules(ctx, model.SentimentNegative, "Le wifi ne marchait pas")
	require.NoError(t, err)
	assert.Empty(t, matched)

	assert.ErrorIs(t, rules.Delete(ctx, wifi.ID), ErrNotFound)
	assert.ErrorIs(t, rules.SetEnabled(ctx, 999, true), ErrNotFound)
}

func TestLogRepository(t *testing.T) {
	repo, _, db := newStaging(t)
	ctx := context.Background()
	logs := NewLogRepository(db)
	item := ingest(t, repo, "logged", "Service excellent")

	require.NoError(t, logs.LogAttempt(ctx, &model.ProcessingLog{StagedItemID: item.ID, ExternalID: item.ExternalID, WorkerID: "w1", Attempt: 1, Status: model.LogStatusFailure, ErrorMsg: "timeout"}))
	require.NoError(t, logs.LogAttempt(ctx, &model.ProcessingLog{StagedItemID: item.ID, ExternalID: item.ExternalID, WorkerID: "w1", Attempt: 2, Status: model.LogStatusSuccess}))

	list, total, err := logs.List(ctx, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 1)

	history, err := logs.ListForItem(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.LogStatusFailure, history[0].Status)
	assert.Equal(t, model.LogStatusSuccess, history[1].Status)

	entry, err := logs.Get(ctx, history[0].ID)
	require.NoError(t, err)
	require.NotNil(t, entry.StagedItem)
	assert.Equal(t, "logged", entry.StagedItem.ExternalID)

	_, err = logs.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}
