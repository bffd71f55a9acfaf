package schemas

import "time"

// -- Account Schemas --

// AccountStatus is the last known state of an account, as observed by the most recent automation probe.
type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountInactive AccountStatus = "inactive"
	AccountError    AccountStatus = "error"
)

// Account identifies a managed account on the team-administration console.
type Account struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Description string `json:"description,omitempty"`
	TeamURL     string `json:"team_url,omitempty"`

	// EncryptedPassword is opaque to everything but the secrets package.
	EncryptedPassword string `json:"-"`
	// Cookies is the session artifact captured after a successful login.
	Cookies []Cookie `json:"cookies,omitempty"`

	Status         AccountStatus `json:"status"`
	LastError      string        `json:"last_error,omitempty"`
	MemberCount    int           `json:"member_count"`
	MemberLimit    int           `json:"member_limit,omitempty"`
	AutoInvite     bool          `json:"auto_invite"`
	InviteInterval time.Duration `json:"invite_interval"`

	LastCheckAt *time.Time `json:"last_check_at,omitempty"`
	LastSyncAt  *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// HasSession reports whether the account holds a stored session artifact.
func (a *Account) HasSession() bool {
	return len(a.Cookies) > 0
}

// EffectiveLimit returns the account's member limit, falling back to def when unset.
func (a *Account) EffectiveLimit(def int) int {
	if a.MemberLimit > 0 {
		return a.MemberLimit
	}
	return def
}

// Cookie is a browser cookie in a driver-neutral form.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"http_only,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"same_site,omitempty"`
}

// ProbeResult is the outcome of one automation probe against an account. It is the
// only input that may change an account's status.
type ProbeResult struct {
	Status      AccountStatus
	Error       string
	MemberCount *int
	Cookies     []Cookie
	CheckedAt   time.Time
	Synced      bool
}
