package delivery

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"

	"github.com/ridelink/backend/internal/cache"
	"github.com/ridelink/backend/internal/messaging"
	"github.com/ridelink/backend/internal/models"
)

// Worker is the transport-side collaborator that acknowledges messages: it
// watches the message stream and flips each new message to delivered, then
// announces the receipt. Delivery never reverses.
type Worker struct {
	redis *cache.RedisClient
	svc   *messaging.Service
}

func NewWorker(redis *cache.RedisClient, svc *messaging.Service) *Worker {
	return &Worker{redis: redis, svc: svc}
}

// Run listens for new messages until the subscription closes.
func (w *Worker) Run() {
	if w.redis == nil {
		log.Println("Delivery worker requires Redis; not started")
		return
	}

	ps := w.redis.SubscribeToMessages()
	defer ps.Close()

	ch := ps.Channel()
	log.Println("Delivery worker started and listening for messages")
	for msg := range ch {
		var ws models.WSMessage
		if err := json.Unmarshal([]byte(msg.Payload), &ws); err != nil {
			continue
		}
		if ws.Event != models.EventMessageNew {
			continue
		}

		raw, _ := json.Marshal(ws.Payload)
		var m models.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		if m.IsDelivered {
			continue
		}

		go w.acknowledge(&m)
	}
}

func (w *Worker) acknowledge(m *models.Message) {
	if err := w.svc.MarkDelivered(context.Background(), m.ID); err != nil {
		log.Printf("Failed to mark message %s delivered: %v", m.ID, err)
		return
	}

	_ = w.redis.PublishConversation(models.WSMessage{
		Event: models.EventMessageDelivered,
		Payload: models.WSConversationPayload{
			ConversationID: m.ConversationID,
			Participants:   []uuid.UUID{m.SenderID, m.ReceiverID},
		},
	})
}
