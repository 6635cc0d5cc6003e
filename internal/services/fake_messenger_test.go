package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/relaydesk-backend/internal/transport"
)

// fakeMessenger records every transport call and can simulate lost
// threads and unreachable users.
type fakeMessenger struct {
	mu            sync.Mutex
	sent          []transport.SendRequest
	media         []transport.SendRequest
	createdTitles []string
	closedThreads []int64
	pinned        []int64
	nextMessageID int64
	nextThreadID  int64
	lostThreads   map[int64]bool
	unreachable   map[int64]bool
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		nextThreadID: 900,
		lostThreads:  map[int64]bool{},
		unreachable:  map[int64]bool{},
	}
}

func (f *fakeMessenger) SendMessage(_ context.Context, req transport.SendRequest) (*transport.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.ThreadID != 0 && f.lostThreads[req.ThreadID] {
		return nil, &transport.Error{Code: transport.CodeThreadNotFound, Message: "thread not found"}
	}
	if f.unreachable[req.ChatID] {
		return nil, &transport.Error{Code: transport.CodeUserUnreachable, Message: "user unreachable"}
	}
	f.nextMessageID++
	f.sent = append(f.sent, req)
	return &transport.Message{MessageID: f.nextMessageID}, nil
}

func (f *fakeMessenger) SendMedia(_ context.Context, req transport.SendRequest) (*transport.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.ThreadID != 0 && f.lostThreads[req.ThreadID] {
		return nil, &transport.Error{Code: transport.CodeThreadNotFound, Message: "thread not found"}
	}
	if f.unreachable[req.ChatID] {
		return nil, &transport.Error{Code: transport.CodeUserUnreachable, Message: "user unreachable"}
	}
	f.nextMessageID++
	f.media = append(f.media, req)
	return &transport.Message{MessageID: f.nextMessageID}, nil
}

func (f *fakeMessenger) CreateThread(_ context.Context, _ int64, title string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextThreadID++
	f.createdTitles = append(f.createdTitles, title)
	return f.nextThreadID, nil
}

func (f *fakeMessenger) CloseThread(_ context.Context, _ int64, threadID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closedThreads = append(f.closedThreads, threadID)
	return nil
}

func (f *fakeMessenger) PinMessage(_ context.Context, _ int64, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pinned = append(f.pinned, messageID)
	return nil
}

func (f *fakeMessenger) lastSent() (transport.SendRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return transport.SendRequest{}, fmt.Errorf("no messages sent")
	}
	return f.sent[len(f.sent)-1], nil
}

func (f *fakeMessenger) sentTo(chatID int64) []transport.SendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []transport.SendRequest
	for _, req := range f.sent {
		if req.ChatID == chatID {
			out = append(out, req)
		}
	}
	return out
}

func (f *fakeMessenger) loseThread(threadID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lostThreads[threadID] = true
}
