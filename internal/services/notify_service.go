package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

const pushQueue = "push_notifications"

// NotifyService is the fire-and-forget push dispatcher. Messages are queued
// to Redis for an external delivery worker; failures are logged and
// swallowed, never surfaced to the caller.
type NotifyService struct {
	redis *redis.Client
}

func NewNotifyService(redisClient *redis.Client) *NotifyService {
	return &NotifyService{redis: redisClient}
}

// Push enqueues one notification. Safe to call from a goroutine after the
// purchase commit; it holds no locks and returns nothing.
func (s *NotifyService) Push(pushToken, message string) {
	if s.redis == nil {
		log.Printf("[NOTIFY] Redis unavailable, dropping notification for token %s", pushToken)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"token":     pushToken,
		"message":   message,
		"timestamp": time.Now().Unix(),
	})
	if err != nil {
		log.Printf("[NOTIFY] Failed to marshal notification: %v", err)
		return
	}

	if err := s.redis.RPush(context.Background(), pushQueue, string(payload)).Err(); err != nil {
		log.Printf("[NOTIFY] Failed to queue notification: %v", err)
		return
	}

	log.Printf("[NOTIFY] Notification queued for token %s", pushToken)
}
