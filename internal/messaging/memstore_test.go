package messaging

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ridelink/backend/internal/models"
)

// memStores is a shared in-memory backing for the store fakes used across
// this package's tests. It enforces the same contracts the SQL repositories
// do: pair uniqueness on create, ErrNotFound on point updates that match
// nothing, and ascending (created_at, seq) message order.
type memStores struct {
	mu    sync.Mutex
	convs map[uuid.UUID]*models.Conversation
	pairs map[string]uuid.UUID
	msgs  map[uuid.UUID][]*models.Message
	names map[uuid.UUID]string
	seq   int64
}

func newMemStores() *memStores {
	return &memStores{
		convs: make(map[uuid.UUID]*models.Conversation),
		pairs: make(map[string]uuid.UUID),
		msgs:  make(map[uuid.UUID][]*models.Message),
		names: make(map[uuid.UUID]string),
	}
}

func (m *memStores) addUser(name string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.names[id] = name
	return id
}

type memConvStore struct{ *memStores }

func (s memConvStore) Create(ctx context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv.IsActive {
		if _, taken := s.pairs[conv.PairKey()]; taken {
			return ErrDuplicatePair
		}
		s.pairs[conv.PairKey()] = conv.ID
	}
	c := *conv
	s.convs[conv.ID] = &c
	return nil
}

func (s memConvStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *conv
	return &c, nil
}

func (s memConvStore) GetByPair(ctx context.Context, userA, userB uuid.UUID) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.pairs[models.PairKey(userA, userB)]
	if !ok {
		return nil, ErrNotFound
	}
	c := *s.convs[id]
	return &c, nil
}

func (s memConvStore) GetByRide(ctx context.Context, rideID uuid.UUID) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range s.convs {
		if conv.IsActive && conv.RideID != nil && *conv.RideID == rideID {
			c := *conv
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s memConvStore) GetForUser(ctx context.Context, userID uuid.UUID) ([]models.ConversationWithParticipant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ConversationWithParticipant
	for _, conv := range s.convs {
		if !conv.IsActive || !conv.HasParticipant(userID) {
			continue
		}
		other := conv.OtherParticipant(userID)
		out = append(out, models.ConversationWithParticipant{
			Conversation:    *conv,
			ParticipantID:   other,
			ParticipantName: s.names[other],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out, nil
}

func (s memConvStore) UpdateLastMessage(ctx context.Context, id uuid.UUID, text string, at time.Time, senderID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return ErrNotFound
	}
	conv.LastMessageText = &text
	if at.After(conv.LastMessageAt) {
		conv.LastMessageAt = at
	}
	conv.LastMessageSenderID = &senderID
	return nil
}

func (s memConvStore) IncrementUnread(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return ErrNotFound
	}
	conv.UnreadCount++
	return nil
}

func (s memConvStore) ResetUnread(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return ErrNotFound
	}
	conv.UnreadCount = 0
	return nil
}

func (s memConvStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return ErrNotFound
	}
	if conv.IsActive {
		conv.IsActive = false
		delete(s.pairs, conv.PairKey())
	}
	return nil
}

func (s memConvStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return ErrNotFound
	}
	if conv.IsActive {
		delete(s.pairs, conv.PairKey())
	}
	delete(s.convs, id)
	return nil
}

type memMsgStore struct{ *memStores }

func (s memMsgStore) Create(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	msg.Seq = s.seq
	m := *msg
	s.msgs[msg.ConversationID] = append(s.msgs[msg.ConversationID], &m)
	return nil
}

func (s memMsgStore) CreateBatch(ctx context.Context, msgs []*models.Message) error {
	for _, msg := range msgs {
		if err := s.Create(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (s memMsgStore) ordered(conversationID uuid.UUID) []*models.Message {
	msgs := append([]*models.Message(nil), s.msgs[conversationID]...)
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].Seq < msgs[j].Seq
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs
}

func (s memMsgStore) ForConversation(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, msg := range s.ordered(conversationID) {
		out = append(out, *msg)
	}
	return out, nil
}

func (s memMsgStore) RecentForConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.MessageWithSender, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.ordered(conversationID)
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	var out []models.MessageWithSender
	for _, msg := range msgs {
		out = append(out, models.MessageWithSender{
			Message:    *msg,
			SenderName: s.names[msg.SenderID],
		})
	}
	return out, nil
}

func (s memMsgStore) LastForConversation(ctx context.Context, conversationID uuid.UUID) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.ordered(conversationID)
	if len(msgs) == 0 {
		return nil, ErrNotFound
	}
	m := *msgs[len(msgs)-1]
	return &m, nil
}

func (s memMsgStore) UnreadCount(ctx context.Context, conversationID, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, msg := range s.msgs[conversationID] {
		if !msg.IsRead && msg.ReceiverID == userID {
			count++
		}
	}
	return count, nil
}

func (s memMsgStore) TotalUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, msgs := range s.msgs {
		for _, msg := range msgs {
			if !msg.IsRead && msg.ReceiverID == userID {
				total++
			}
		}
	}
	return total, nil
}

func (s memMsgStore) MarkConversationRead(ctx context.Context, conversationID, receiverID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, msg := range s.msgs[conversationID] {
		if !msg.IsRead && msg.ReceiverID == receiverID {
			msg.IsRead = true
			n++
		}
	}
	return n, nil
}

func (s memMsgStore) MarkDelivered(ctx context.Context, messageID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msgs := range s.msgs {
		for _, msg := range msgs {
			if msg.ID == messageID {
				msg.IsDelivered = true
				return nil
			}
		}
	}
	return ErrNotFound
}

func (s memMsgStore) DeleteForConversation(ctx context.Context, conversationID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.msgs, conversationID)
	return nil
}

func (s memMsgStore) ForRide(ctx context.Context, rideID uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, msgs := range s.msgs {
		for _, msg := range msgs {
			if msg.RideID != nil && *msg.RideID == rideID {
				out = append(out, *msg)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// applierMsgStore upgrades the fake with the single-transaction send path.
type applierMsgStore struct {
	memMsgStore
	convs memConvStore
}

func (s applierMsgStore) ApplySend(ctx context.Context, msg *models.Message) error {
	if err := s.memMsgStore.Create(ctx, msg); err != nil {
		return err
	}
	if err := s.convs.UpdateLastMessage(ctx, msg.ConversationID, msg.Content, msg.CreatedAt, msg.SenderID); err != nil {
		return err
	}
	return s.convs.IncrementUnread(ctx, msg.ConversationID)
}

// brokenMsgStore fails every aggregate query.
type brokenMsgStore struct {
	memMsgStore
}

func (s brokenMsgStore) TotalUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return 0, errors.New("store unavailable")
}

func newTestService() (*Service, *memStores) {
	mem := newMemStores()
	svc := NewService(memConvStore{mem}, memMsgStore{mem}, nil)
	return svc, mem
}
