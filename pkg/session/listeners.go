package session

// Listeners fans events out to every non-nil listener, in order.
type Listeners []Listener

func (ls Listeners) SessionCreated(s *Session) {
	for _, l := range ls {
		if l != nil {
			l.SessionCreated(s)
		}
	}
}

func (ls Listeners) SessionDestroyed(s *Session) {
	for _, l := range ls {
		if l != nil {
			l.SessionDestroyed(s)
		}
	}
}
