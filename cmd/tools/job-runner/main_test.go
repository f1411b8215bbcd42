package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicremind/internal/scheduler"
)

func TestBuildPayload(t *testing.T) {
	t.Run("valid task with reference time", func(t *testing.T) {
		p, err := buildPayload("send_reminders", "2026-03-10T18:00:00Z")
		require.NoError(t, err)
		assert.Equal(t, scheduler.TaskSendReminders, p.Task)
		require.NotNil(t, p.ReferenceTime)
		assert.True(t, p.ReferenceTime.Equal(time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)))
	})

	tests := []struct {
		name, task, ref, want string
	}{
		{"missing task", "", "", "--task is required"},
		{"unknown task", "reindex", "", "unknown task type"},
		{"bad reference time", "prune_history", "yesterday", "invalid --reference-time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildPayload(tt.task, tt.ref)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPrintPayload_MatchesLambdaInput(t *testing.T) {
	p, err := buildPayload("prune_history", "")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printPayload(&buf, p))

	var decoded scheduler.TaskPayload
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, scheduler.TaskPruneHistory, decoded.Task)
	assert.NotContains(t, buf.String(), "reference_time")
}

func TestPrintAvailableTasks(t *testing.T) {
	var buf bytes.Buffer
	printAvailableTasks(&buf)

	out := buf.String()
	assert.Less(t, strings.Index(out, "prune_history"), strings.Index(out, "send_reminders"))
}
