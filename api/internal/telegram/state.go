package telegram

import "sync"

// request is what a chat asked for last, kept for the regenerate button.
type request struct {
	Kind   string
	LLM    string
	Params map[string]any
}

// chatState holds per-chat choices. The zero value is ready to use.
type chatState struct {
	engines sync.Map // chatID -> string
	last    sync.Map // chatID -> request
}

func (s *chatState) engine(chatID int64) string {
	if v, ok := s.engines.Load(chatID); ok {
		name, _ := v.(string)
		return name
	}
	return ""
}

func (s *chatState) setEngine(chatID int64, name string) { s.engines.Store(chatID, name) }

func (s *chatState) remember(chatID int64, req request) { s.last.Store(chatID, req) }

func (s *chatState) lastRequest(chatID int64) (request, bool) {
	v, ok := s.last.Load(chatID)
	if !ok {
		return request{}, false
	}
	req, ok := v.(request)
	return req, ok
}
