package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRetentionStore struct {
	jobsDeleted, msgsDeleted int
	jobsErr, msgsErr         error
	jobsCutoff, msgsCutoff   time.Time
	jobsCalled, msgsCalled   bool
}

func (f *fakeRetentionStore) DeleteJobHistoryBefore(_ context.Context, cutoff time.Time) (int, error) {
	f.jobsCalled, f.jobsCutoff = true, cutoff
	return f.jobsDeleted, f.jobsErr
}

func (f *fakeRetentionStore) DeleteMessagesBefore(_ context.Context, cutoff time.Time) (int, error) {
	f.msgsCalled, f.msgsCutoff = true, cutoff
	return f.msgsDeleted, f.msgsErr
}

func TestPruner_Prune(t *testing.T) {
	store := &fakeRetentionStore{jobsDeleted: 12, msgsDeleted: 300}
	p := NewPruner(store, RetentionConfig{JobHistory: 30 * 24 * time.Hour, MessageLog: 90 * 24 * time.Hour}, nil)

	n, err := p.Prune(context.Background(), tick)

	require.NoError(t, err)
	assert.Equal(t, 312, n)
	assert.Equal(t, tick.Add(-30*24*time.Hour), store.jobsCutoff)
	assert.Equal(t, tick.Add(-90*24*time.Hour), store.msgsCutoff)
}

func TestPruner_ZeroRetentionDisablesTable(t *testing.T) {
	store := &fakeRetentionStore{jobsDeleted: 4}
	p := NewPruner(store, RetentionConfig{JobHistory: time.Hour}, nil)

	n, err := p.Prune(context.Background(), tick)

	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.False(t, store.msgsCalled)
}

func TestPruner_OneFailureDoesNotStopTheOther(t *testing.T) {
	store := &fakeRetentionStore{jobsErr: errors.New("lock timeout"), msgsDeleted: 7}
	p := NewPruner(store, RetentionConfig{JobHistory: time.Hour, MessageLog: time.Hour}, nil)

	n, err := p.Prune(context.Background(), tick)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "job history")
	assert.Equal(t, 7, n)
	assert.True(t, store.msgsCalled)
}
