package runner

import (
	"fmt"
	"time"

	"pageswarm/internal/profile"
)

type Config struct {
	// Users is the number of concurrent sessions, one per user id 1..Users.
	Users int
	// Seed derives each session's random source (Seed + userID).
	Seed int64
}

// Result is the terminal outcome of one session. Exactly one is produced
// per spawned session.
type Result struct {
	UserID     int           `json:"user_id"`
	Success    bool          `json:"success"`
	LoadTime   time.Duration `json:"load_time"`
	Error      string        `json:"error,omitempty"`
	Screenshot string        `json:"screenshot,omitempty"`
	Profile    string        `json:"profile"`
	Hops       int           `json:"hops"`
	StartedAt  time.Time     `json:"started_at"`
}

// LoadTimeMs is the initial page load in whole milliseconds.
func (r Result) LoadTimeMs() int64 {
	return r.LoadTime.Milliseconds()
}

// Crashed builds the failure result reported for a session that died
// before producing its own.
func Crashed(userID int, cause any) Result {
	return Result{
		UserID:  userID,
		Success: false,
		Error:   fmt.Sprintf("session crashed: %v", cause),
		Profile: profile.UnknownProfileName,
	}
}

// Snapshot is sent over the Updates channel after every result.
type Snapshot struct {
	Total   int
	Done    int
	Success int
	Fail    int
	Active  int64

	MeanLoadTimeMs float64
	Last           Result
}

// UpdateChan is the channel type
type UpdateChan chan Snapshot
