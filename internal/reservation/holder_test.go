package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewHolder(t *testing.T) {
	h := NewHolder("u1", "s1")
	assert.Equal(t, Holder{UserID: "u1"}, h)
	col, val := h.column()
	assert.Equal(t, "user_id", col)
	assert.Equal(t, "u1", val)

	h = NewHolder("", "s1")
	col, val = h.column()
	assert.Equal(t, "session_id", col)
	assert.Equal(t, "s1", val)

	assert.False(t, NewHolder("", "").Valid())
}

func TestReservationActive(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	r := Reservation{ExpiresAt: now}
	assert.False(t, r.Active(now), "a hold expiring exactly now is already dead")
	assert.True(t, r.Active(now.Add(-time.Nanosecond)))
}

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(""))
	assert.Equal(t, "x", *nullable("x"))
}
