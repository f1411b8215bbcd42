package scheduler

import "time"

// TaskType identifies the job an EventBridge rule asks the scheduler Lambda
// to run.
type TaskType string

const (
	// TaskSendReminders runs one reminder pass over every tenant. It is the
	// hourly rule.
	TaskSendReminders TaskType = "send_reminders"
	// TaskPruneHistory deletes job history and message log rows past their
	// retention. It is a daily rule.
	TaskPruneHistory TaskType = "prune_history"
)

// TaskPayload is the JSON body EventBridge sends to the scheduler Lambda:
//
//	{
//	  "task": "send_reminders",
//	  "reference_time": "2026-03-10T18:00:00Z"  // optional
//	}
//
// ReferenceTime replaces "now" for manual replays of a missed tick. An empty
// task means send_reminders so that a bare scheduled event works.
type TaskPayload struct {
	Task          TaskType   `json:"task"`
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}

// Now returns the reference time, or fallback when none was given.
func (p TaskPayload) Now(fallback time.Time) time.Time {
	if p.ReferenceTime != nil {
		return p.ReferenceTime.UTC()
	}
	return fallback.UTC()
}
