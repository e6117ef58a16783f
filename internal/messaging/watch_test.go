package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/ridelink/backend/internal/models"
)

func newWatchedService(t *testing.T) (*Service, *Watcher, *memStores) {
	t.Helper()
	svc, mem := newTestService()
	watcher := NewWatcher(svc)
	svc.SetNotifier(watcher)
	return svc, watcher, mem
}

func recvConvs(t *testing.T, sub *ConversationListSub) []models.ConversationWithParticipant {
	t.Helper()
	select {
	case snapshot := <-sub.Updates():
		return snapshot
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for conversation snapshot")
		return nil
	}
}

func recvMsgs(t *testing.T, sub *MessageListSub) []models.MessageWithSender {
	t.Helper()
	select {
	case snapshot := <-sub.Updates():
		return snapshot
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for message snapshot")
		return nil
	}
}

func TestWatcher_InitialSnapshot(t *testing.T) {
	ctx := context.Background()
	svc, watcher, mem := newWatchedService(t)
	rider := mem.addUser("Sam Rider")
	driver := mem.addUser("Dana Driver")
	conv, _ := svc.GetOrCreateConversation(ctx, rider, driver, nil)

	sub, err := watcher.WatchConversations(ctx, rider)
	if err != nil {
		t.Fatalf("WatchConversations failed: %v", err)
	}
	defer sub.Close()

	snapshot := recvConvs(t, sub)
	if len(snapshot) != 1 || snapshot[0].ID != conv.ID {
		t.Fatalf("Expected the initial snapshot to hold the existing conversation")
	}
}

func TestWatcher_EmitsOnSend(t *testing.T) {
	ctx := context.Background()
	svc, watcher, mem := newWatchedService(t)
	rider := mem.addUser("Sam Rider")
	driver := mem.addUser("Dana Driver")
	conv, _ := svc.GetOrCreateConversation(ctx, rider, driver, nil)

	msgSub, err := watcher.WatchMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("WatchMessages failed: %v", err)
	}
	defer msgSub.Close()
	convSub, err := watcher.WatchConversations(ctx, driver)
	if err != nil {
		t.Fatalf("WatchConversations failed: %v", err)
	}
	defer convSub.Close()

	if got := recvMsgs(t, msgSub); len(got) != 0 {
		t.Fatalf("Expected empty initial message snapshot, got %d", len(got))
	}
	recvConvs(t, convSub)

	if _, err := svc.SendMessage(ctx, conv.ID, rider, driver, "On my way", models.MessageTypeText, nil); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	msgs := recvMsgs(t, msgSub)
	if len(msgs) != 1 || msgs[0].Content != "On my way" {
		t.Fatalf("Expected the send to re-emit the message list")
	}

	convs := recvConvs(t, convSub)
	if len(convs) != 1 {
		t.Fatalf("Expected 1 conversation, got %d", len(convs))
	}
	if convs[0].UnreadCount != 1 {
		t.Errorf("Expected the re-emitted list to carry unread count 1, got %d", convs[0].UnreadCount)
	}
	if convs[0].LastMessageText == nil || *convs[0].LastMessageText != "On my way" {
		t.Error("Expected the re-emitted list to carry the new summary text")
	}
}

func TestWatcher_EmitsOnReadAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, watcher, mem := newWatchedService(t)
	rider := mem.addUser("Sam Rider")
	driver := mem.addUser("Dana Driver")
	conv, _ := svc.GetOrCreateConversation(ctx, rider, driver, nil)
	svc.SendMessage(ctx, conv.ID, rider, driver, "ping", models.MessageTypeText, nil)

	sub, err := watcher.WatchConversations(ctx, driver)
	if err != nil {
		t.Fatalf("WatchConversations failed: %v", err)
	}
	defer sub.Close()
	recvConvs(t, sub)

	if err := svc.MarkRead(ctx, conv.ID, driver); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	convs := recvConvs(t, sub)
	if len(convs) != 1 || convs[0].UnreadCount != 0 {
		t.Fatalf("Expected read to re-emit with a cleared counter")
	}

	if err := svc.DeleteConversation(ctx, conv.ID); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}
	convs = recvConvs(t, sub)
	if len(convs) != 0 {
		t.Fatalf("Expected delete to re-emit an empty list, got %d entries", len(convs))
	}
}

func TestWatcher_CoalescesUnderSlowConsumer(t *testing.T) {
	ctx := context.Background()
	svc, watcher, mem := newWatchedService(t)
	rider := mem.addUser("Sam Rider")
	driver := mem.addUser("Dana Driver")
	conv, _ := svc.GetOrCreateConversation(ctx, rider, driver, nil)

	sub, err := watcher.WatchMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("WatchMessages failed: %v", err)
	}
	defer sub.Close()

	// Nobody drains the channel while three sends land.
	for _, content := range []string{"one", "two", "three"} {
		if _, err := svc.SendMessage(ctx, conv.ID, rider, driver, content, models.MessageTypeText, nil); err != nil {
			t.Fatalf("SendMessage failed: %v", err)
		}
	}

	// The single buffered slot holds the latest snapshot only.
	msgs := recvMsgs(t, sub)
	if len(msgs) != 3 {
		t.Fatalf("Expected the coalesced snapshot to hold all 3 messages, got %d", len(msgs))
	}
	select {
	case extra, ok := <-sub.Updates():
		if ok {
			t.Fatalf("Expected no stale snapshot, got one with %d messages", len(extra))
		}
	default:
	}
}

func TestWatcher_CloseStopsEmissions(t *testing.T) {
	ctx := context.Background()
	svc, watcher, mem := newWatchedService(t)
	rider := mem.addUser("Sam Rider")
	driver := mem.addUser("Dana Driver")
	conv, _ := svc.GetOrCreateConversation(ctx, rider, driver, nil)

	sub, err := watcher.WatchMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("WatchMessages failed: %v", err)
	}
	sub.Close()
	sub.Close() // closing twice is fine

	// A send after close must not panic on the closed channel.
	if _, err := svc.SendMessage(ctx, conv.ID, rider, driver, "after close", models.MessageTypeText, nil); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if _, ok := <-sub.Updates(); ok {
		t.Fatal("Expected the channel to be closed")
	}
}

func TestWatcher_CloseDiscardsPendingSnapshot(t *testing.T) {
	ctx := context.Background()
	svc, watcher, mem := newWatchedService(t)
	rider := mem.addUser("Sam Rider")
	driver := mem.addUser("Dana Driver")
	conv, _ := svc.GetOrCreateConversation(ctx, rider, driver, nil)

	// Neither initial snapshot gets drained before Close.
	msgSub, err := watcher.WatchMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("WatchMessages failed: %v", err)
	}
	convSub, err := watcher.WatchConversations(ctx, rider)
	if err != nil {
		t.Fatalf("WatchConversations failed: %v", err)
	}

	msgSub.Close()
	convSub.Close()

	if _, ok := <-msgSub.Updates(); ok {
		t.Fatal("Expected no snapshot after closing the message subscription")
	}
	if _, ok := <-convSub.Updates(); ok {
		t.Fatal("Expected no snapshot after closing the conversation subscription")
	}
}
