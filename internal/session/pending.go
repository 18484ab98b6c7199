package session

import (
	"encoding/json"
	"time"
)

// Pending remembers an account awaiting email verification or a password
// reset, so the client can resend or resume without retyping the address.
type Pending struct {
	UserID   string    `json:"user_id"`
	Email    string    `json:"email"`
	IssuedAt time.Time `json:"issued_at"`
}

// SavePending stores p under key.
func SavePending(values Values, key string, p Pending) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	values.Set(key, string(data))
	return nil
}

// LoadPending returns the record under key. Corrupt records are dropped.
func LoadPending(values Values, key string) (Pending, bool) {
	raw := values.Get(key)
	if raw == "" {
		return Pending{}, false
	}
	var p Pending
	if err := json.Unmarshal([]byte(raw), &p); err != nil || p.Email == "" {
		values.Delete(key)
		return Pending{}, false
	}
	return p, true
}

// ClearPending removes the record under key.
func ClearPending(values Values, key string) {
	values.Delete(key)
}
