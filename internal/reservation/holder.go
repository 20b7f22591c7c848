package reservation

// Holder identifies who owns a reservation: an authenticated user or an
// anonymous session. When both are supplied the user id wins.
type Holder struct {
	UserID    string
	SessionID string
}

func NewHolder(userID, sessionID string) Holder {
	if userID != "" {
		return Holder{UserID: userID}
	}
	return Holder{SessionID: sessionID}
}

func (h Holder) Valid() bool { return h.UserID != "" || h.SessionID != "" }

// column returns the reservation column and value that identify this holder.
func (h Holder) column() (string, string) {
	if h.UserID != "" {
		return "user_id", h.UserID
	}
	return "session_id", h.SessionID
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
