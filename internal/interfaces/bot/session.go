package bot

import "sync"

// chatSessions runs update handlers with per-chat FIFO ordering. Updates
// for different chats run concurrently; within one chat they execute in
// the exact order do was called, which the dialogue event log depends on.
type chatSessions struct {
	mu     sync.Mutex
	queues map[int64][]func()
}

func newChatSessions() *chatSessions {
	return &chatSessions{queues: make(map[int64][]func())}
}

// do enqueues fn for the chat and returns immediately. Enqueue order is
// call order, so callers feeding updates from a single receive loop get
// arrival-order execution. The first pending fn for a chat starts a
// drain goroutine.
func (s *chatSessions) do(chatID int64, fn func()) {
	s.mu.Lock()
	s.queues[chatID] = append(s.queues[chatID], fn)
	starting := len(s.queues[chatID]) == 1
	s.mu.Unlock()

	if starting {
		go s.drain(chatID)
	}
}

// drain executes the chat's queue head to tail. The running fn stays at
// the head until it finishes, so the queue entry exists exactly as long
// as a drainer is active and do never starts a second one.
func (s *chatSessions) drain(chatID int64) {
	for {
		s.mu.Lock()
		fn := s.queues[chatID][0]
		s.mu.Unlock()

		fn()

		s.mu.Lock()
		rest := s.queues[chatID][1:]
		if len(rest) == 0 {
			delete(s.queues, chatID)
			s.mu.Unlock()
			return
		}
		s.queues[chatID] = rest
		s.mu.Unlock()
	}
}
