package syncer

import (
	"context"
	"errors"
	"time"

	"agrisync/internal/netmon"
	"agrisync/internal/queue"
)

// ErrCycleInProgress is returned by SyncNow while another drain is active.
var ErrCycleInProgress = errors.New("sync cycle already in progress")

// Dispatcher delivers a single item to the remote service.
type Dispatcher interface {
	Dispatch(ctx context.Context, item queue.Item) error
}

// Connectivity is the view of the network monitor the engine needs.
type Connectivity interface {
	Online() bool
	Subscribe() *netmon.Subscription
}

// State is the engine's drain state.
type State string

const (
	StateIdle     State = "idle"
	StateDraining State = "draining"
)

// Trigger reasons recorded on reports.
const (
	ReasonManual    = "manual"
	ReasonReconnect = "reconnect"
	ReasonSchedule  = "schedule"
	ReasonStartup   = "startup"
)

// Report summarizes one drain.
type Report struct {
	Reason    string        `json:"reason"`
	StartedAt time.Time     `json:"started_at"`
	Attempted int           `json:"attempted"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Aborted   bool          `json:"aborted"`
	Evicted   int           `json:"evicted"`
	Remaining int           `json:"remaining"`
	Duration  time.Duration `json:"duration"`
}

// Status is a point-in-time view of the engine.
type Status struct {
	State      State   `json:"state"`
	Running    bool    `json:"running"`
	Schedule   string  `json:"schedule,omitempty"`
	LastReport *Report `json:"last_report,omitempty"`
	LastError  string  `json:"last_error,omitempty"`
}
