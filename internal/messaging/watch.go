package messaging

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/ridelink/backend/internal/models"
)

// Watcher turns the stores into live queries: subscribers get one snapshot
// immediately and a fresh one whenever a change event touches their query.
// Snapshots coalesce under a slow consumer; only the latest one is kept.
type Watcher struct {
	svc *Service

	mu       sync.Mutex
	convSubs map[uuid.UUID]map[*ConversationListSub]struct{}
	msgSubs  map[uuid.UUID]map[*MessageListSub]struct{}
}

func NewWatcher(svc *Service) *Watcher {
	return &Watcher{
		svc:      svc,
		convSubs: make(map[uuid.UUID]map[*ConversationListSub]struct{}),
		msgSubs:  make(map[uuid.UUID]map[*MessageListSub]struct{}),
	}
}

// ConversationListSub is a live subscription to one user's conversation list.
type ConversationListSub struct {
	ch        chan []models.ConversationWithParticipant
	userID    uuid.UUID
	watcher   *Watcher
	closeOnce sync.Once
}

// Updates delivers conversation-list snapshots, newest state last.
func (s *ConversationListSub) Updates() <-chan []models.ConversationWithParticipant {
	return s.ch
}

// Close stops emissions and releases the registration. Any snapshot still
// sitting in the buffer is discarded.
func (s *ConversationListSub) Close() {
	s.closeOnce.Do(func() {
		s.watcher.dropConversationSub(s)
		select {
		case <-s.ch:
		default:
		}
		close(s.ch)
	})
}

// MessageListSub is a live subscription to one conversation's message list.
type MessageListSub struct {
	ch             chan []models.MessageWithSender
	conversationID uuid.UUID
	watcher        *Watcher
	closeOnce      sync.Once
}

func (s *MessageListSub) Updates() <-chan []models.MessageWithSender {
	return s.ch
}

func (s *MessageListSub) Close() {
	s.closeOnce.Do(func() {
		s.watcher.dropMessageSub(s)
		select {
		case <-s.ch:
		default:
		}
		close(s.ch)
	})
}

// WatchConversations subscribes to the user's conversation list. The first
// snapshot is emitted before WatchConversations returns.
func (w *Watcher) WatchConversations(ctx context.Context, userID uuid.UUID) (*ConversationListSub, error) {
	snapshot, err := w.svc.ConversationsFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	sub := &ConversationListSub{
		ch:      make(chan []models.ConversationWithParticipant, 1),
		userID:  userID,
		watcher: w,
	}
	sub.ch <- snapshot

	w.mu.Lock()
	if w.convSubs[userID] == nil {
		w.convSubs[userID] = make(map[*ConversationListSub]struct{})
	}
	w.convSubs[userID][sub] = struct{}{}
	w.mu.Unlock()

	return sub, nil
}

// WatchMessages subscribes to a conversation's message list. The first
// snapshot is emitted before WatchMessages returns.
func (w *Watcher) WatchMessages(ctx context.Context, conversationID uuid.UUID) (*MessageListSub, error) {
	snapshot, err := w.svc.RecentMessages(ctx, conversationID, 0)
	if err != nil {
		return nil, err
	}

	sub := &MessageListSub{
		ch:             make(chan []models.MessageWithSender, 1),
		conversationID: conversationID,
		watcher:        w,
	}
	sub.ch <- snapshot

	w.mu.Lock()
	if w.msgSubs[conversationID] == nil {
		w.msgSubs[conversationID] = make(map[*MessageListSub]struct{})
	}
	w.msgSubs[conversationID][sub] = struct{}{}
	w.mu.Unlock()

	return sub, nil
}

// Notify implements Notifier: every change re-queries and re-emits the
// subscriptions it can affect.
func (w *Watcher) Notify(event ChangeEvent) {
	ctx := context.Background()

	w.mu.Lock()
	var msgSubs []*MessageListSub
	for sub := range w.msgSubs[event.ConversationID] {
		msgSubs = append(msgSubs, sub)
	}
	var convSubs []*ConversationListSub
	for _, userID := range event.Participants {
		for sub := range w.convSubs[userID] {
			convSubs = append(convSubs, sub)
		}
	}
	w.mu.Unlock()

	if len(msgSubs) > 0 {
		snapshot, err := w.svc.RecentMessages(ctx, event.ConversationID, 0)
		if err != nil {
			log.Printf("message snapshot refresh failed for %s: %v", event.ConversationID, err)
		} else {
			for _, sub := range msgSubs {
				w.push(sub, snapshot)
			}
		}
	}

	for _, sub := range convSubs {
		snapshot, err := w.svc.ConversationsFor(ctx, sub.userID)
		if err != nil {
			log.Printf("conversation snapshot refresh failed for %s: %v", sub.userID, err)
			continue
		}
		w.pushConv(sub, snapshot)
	}
}

// push replaces any pending snapshot with the latest one without blocking.
func (w *Watcher) push(sub *MessageListSub, snapshot []models.MessageWithSender) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.msgSubs[sub.conversationID][sub]; !ok {
		return
	}
	select {
	case <-sub.ch:
	default:
	}
	select {
	case sub.ch <- snapshot:
	default:
	}
}

func (w *Watcher) pushConv(sub *ConversationListSub, snapshot []models.ConversationWithParticipant) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.convSubs[sub.userID][sub]; !ok {
		return
	}
	select {
	case <-sub.ch:
	default:
	}
	select {
	case sub.ch <- snapshot:
	default:
	}
}

func (w *Watcher) dropConversationSub(sub *ConversationListSub) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if subs, ok := w.convSubs[sub.userID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(w.convSubs, sub.userID)
		}
	}
}

func (w *Watcher) dropMessageSub(sub *MessageListSub) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if subs, ok := w.msgSubs[sub.conversationID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(w.msgSubs, sub.conversationID)
		}
	}
}
