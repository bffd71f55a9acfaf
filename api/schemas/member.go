package schemas

import "time"

// MemberSnapshot is the last known roster state of an account.
type MemberSnapshot struct {
	// Addresses excludes the account owner.
	Addresses []string `json:"addresses"`
	// CountHint is the member count read from the UI, nil when it could not be read.
	// It is authoritative over len(Addresses).
	CountHint *int      `json:"count_hint,omitempty"`
	ReadAt    time.Time `json:"read_at"`
}

// Count returns the authoritative member count and whether one is known.
func (m MemberSnapshot) Count() (int, bool) {
	if m.CountHint == nil {
		return 0, false
	}
	return *m.CountHint, true
}

// MemberTab selects a view of the members-management surface.
type MemberTab string

const (
	TabMembers  MemberTab = "members"
	TabInvites  MemberTab = "invites"
	TabRequests MemberTab = "requests"
)

// ProgressEvent is emitted once per address while a job runs.
type ProgressEvent struct {
	Index   int           `json:"index"`
	Total   int           `json:"total"`
	Address string        `json:"address"`
	Status  OutcomeStatus `json:"status"`
	Error   string        `json:"error,omitempty"`
}
