package store

import "sync"

// SessionStore keeps the dialogue session of every chat and writes the
// whole mapping through to its JSON file on each mutation.
type SessionStore struct {
	mu       sync.Mutex
	path     string
	sessions map[string]Session
}

// OpenSessions loads existing sessions from path. A missing, empty or
// unreadable file yields an empty store.
func OpenSessions(path string) *SessionStore {
	s := &SessionStore{
		path:     path,
		sessions: make(map[string]Session),
	}
	readJSONFile(path, &s.sessions)
	return s
}

// Get returns the session of a chat, if any.
func (s *SessionStore) Get(chatID string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	return sess, ok
}

// Upsert stores the session for a chat and persists the store.
func (s *SessionStore) Upsert(chatID string, sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[chatID] = sess
	writeJSONFile(s.path, s.sessions)
}

// Clear removes the session of a chat and rewrites the durable store
// without it. Clearing an absent session is a no-op.
func (s *SessionStore) Clear(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[chatID]; !ok {
		return
	}
	delete(s.sessions, chatID)
	writeJSONFile(s.path, s.sessions)
}

// InProgress reports whether the chat has an active dialogue.
func (s *SessionStore) InProgress(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	return ok && sess.Step != ""
}

// ActiveCount returns the number of chats with an active dialogue.
func (s *SessionStore) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.Step != "" {
			n++
		}
	}
	return n
}
