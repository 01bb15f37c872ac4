package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/suturelab/tissuesim/internal/session"
	"github.com/suturelab/tissuesim/internal/tissue"
)

const (
	contactChannelPrefix = "tissue:contacts:"
	summaryTTL           = time.Hour
)

// ContactChannel is the pub/sub channel carrying one session's contacts.
func ContactChannel(sessionID string) string {
	return contactChannelPrefix + sessionID
}

// SummaryKey is where the latest summary of a session is cached.
func SummaryKey(sessionID string) string {
	return "tissue:session:" + sessionID + ":state"
}

// ContactMessage is the wire payload published for every local contact.
type ContactMessage struct {
	InstanceID string             `json:"instance_id"`
	SessionID  string             `json:"session_id"`
	Contact    tissue.ToolContact `json:"contact"`
}

// Deliverer receives contacts relayed from other instances.
type Deliverer interface {
	DeliverRemote(sessionID string, c tissue.ToolContact) error
}

// Relay shares contacts and session summaries between instances over Redis.
// There is no ordering or authority between instances: each applies what
// it receives when it receives it.
type Relay struct {
	rdb        *redis.Client
	instanceID string
}

func New(rdb *redis.Client, instanceID string) *Relay {
	return &Relay{rdb: rdb, instanceID: instanceID}
}

// PublishContact announces a locally applied contact.
func (r *Relay) PublishContact(ctx context.Context, sessionID string, c tissue.ToolContact) error {
	b, err := json.Marshal(ContactMessage{InstanceID: r.instanceID, SessionID: sessionID, Contact: c})
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, ContactChannel(sessionID), b).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", sessionID, err)
	}
	return nil
}

// CacheSummary stores the session summary for an hour.
func (r *Relay) CacheSummary(ctx context.Context, sum session.Summary) error {
	b, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	return r.rdb.SetEx(ctx, SummaryKey(sum.SessionID), b, summaryTTL).Err()
}

// CachedSummary loads a summary written by any instance.
func (r *Relay) CachedSummary(ctx context.Context, sessionID string) (*session.Summary, error) {
	data, err := r.rdb.Get(ctx, SummaryKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: %s", session.ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}
	var sum session.Summary
	if err := json.Unmarshal([]byte(data), &sum); err != nil {
		return nil, fmt.Errorf("decode summary %s: %w", sessionID, err)
	}
	return &sum, nil
}

// StartSubscriber pattern-subscribes to every session's contact channel
// and hands foreign contacts to d until ctx ends.
func (r *Relay) StartSubscriber(ctx context.Context, d Deliverer) {
	pubsub := r.rdb.PSubscribe(ctx, contactChannelPrefix+"*")
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		log.Printf("[RELAY] contact subscriber started (instance=%s)", r.instanceID)
		for {
			select {
			case <-ctx.Done():
				log.Println("[RELAY] contact subscriber stopping")
				return
			case msg, ok := <-ch:
				if !ok {
					log.Println("[RELAY] subscription channel closed")
					return
				}
				r.handle(msg.Channel, msg.Payload, d)
			}
		}
	}()
}

// handle decodes one message and delivers it unless it is our own echo.
func (r *Relay) handle(channel, payload string, d Deliverer) bool {
	var m ContactMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		log.Printf("[RELAY] invalid payload on %s: %v", channel, err)
		return false
	}
	if m.InstanceID == r.instanceID {
		return false
	}
	if m.SessionID == "" {
		m.SessionID = strings.TrimPrefix(channel, contactChannelPrefix)
	}
	if err := d.DeliverRemote(m.SessionID, m.Contact); err != nil {
		log.Printf("[RELAY] contact for %s from %s not applied: %v", m.SessionID, m.InstanceID, err)
		return false
	}
	return true
}
