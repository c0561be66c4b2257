// Package model defines domain entities for the application.
package model

// Account is a user record as held by the external record store.
// Counters are nullable in storage; a nil CallsAllowed falls back to the
// process-wide default.
type Account struct {
	Key               string `json:"user_key"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	BackendCredential string `json:"-"` // Never serialize
	CallsMade         int    `json:"calls_made"`
	CallsAllowed      *int   `json:"max_calls,omitempty"`
}

// Limit returns the account's call ceiling, using defaultMax when the stored
// value is absent or non-positive.
func (a *Account) Limit(defaultMax int) int {
	if a.CallsAllowed == nil || *a.CallsAllowed <= 0 {
		return defaultMax
	}
	return *a.CallsAllowed
}

// Remaining returns how many calls are left before the quota is exhausted.
// The result can be negative when the counter overshot the limit.
func (a *Account) Remaining(defaultMax int) int {
	return a.Limit(defaultMax) - a.CallsMade
}

// CanMakeCall reports whether a new generation call may be attempted.
func (a *Account) CanMakeCall(defaultMax int) bool {
	return a.Remaining(defaultMax) > 0
}

// AccountResponse is the public view of an account. It never carries the
// backend credential.
type AccountResponse struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	UserKey        string `json:"userKey"`
	CallsMade      int    `json:"callsMade"`
	MaxCalls       int    `json:"maxCalls"`
	CallsRemaining int    `json:"callsRemaining"`
	CanMakeCall    bool   `json:"canMakeCall"`
}

// ToResponse converts an Account to its public representation.
func (a *Account) ToResponse(defaultMax int) AccountResponse {
	return AccountResponse{
		Name:           a.Name,
		Email:          a.Email,
		UserKey:        a.Key,
		CallsMade:      a.CallsMade,
		MaxCalls:       a.Limit(defaultMax),
		CallsRemaining: a.Remaining(defaultMax),
		CanMakeCall:    a.CanMakeCall(defaultMax),
	}
}
