package store

import "sync"

type subscriberFile struct {
	Chats []string `json:"chats"`
}

// SubscriberStore records every chat that has ever talked to the bot, kept
// for announcements. The JSON shape is {"chats": [...]}.
type SubscriberStore struct {
	mu    sync.Mutex
	path  string
	chats []string
	seen  map[string]struct{}
}

// OpenSubscribers loads the registry from path. A missing, empty or
// unreadable file yields an empty registry.
func OpenSubscribers(path string) *SubscriberStore {
	s := &SubscriberStore{
		path: path,
		seen: make(map[string]struct{}),
	}
	var f subscriberFile
	readJSONFile(path, &f)
	for _, chat := range f.Chats {
		if _, dup := s.seen[chat]; dup {
			continue
		}
		s.seen[chat] = struct{}{}
		s.chats = append(s.chats, chat)
	}
	return s
}

// Add registers a chat and reports whether it was new. Only new chats
// trigger a rewrite of the durable store.
func (s *SubscriberStore) Add(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[chatID]; ok {
		return false
	}
	s.seen[chatID] = struct{}{}
	s.chats = append(s.chats, chatID)
	writeJSONFile(s.path, subscriberFile{Chats: s.chats})
	return true
}

// Count reports the number of known chats.
func (s *SubscriberStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chats)
}
