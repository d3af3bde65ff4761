package shared

import (
	"fmt"
	"time"
)

// STOMP destination patterns (must match the backend contract exactly)
const (
	TopicPersonalQueue = "/topic/users/%s/queue"  // formatted with user ID
	TopicEventQueue    = "/topic/events/%s/queue" // formatted with event ID
	TopicEventSeats    = "/topic/events/%s/seats" // formatted with event ID
	TopicNotifications = "/user/notifications"
)

// Timeouts and durations
const (
	HeartbeatInterval    = 4 * time.Second
	ReconnectBaseDelay   = 3 * time.Second
	MaxReconnectAttempts = 5
	RESTTimeout          = 10 * time.Second
	UnloadRequeueTimeout = 2 * time.Second
)

// Purchase flow configuration
const (
	PurchaseWindowSeconds = 900 // 15 minutes to complete a purchase after entering
	SeatChangeLogCap      = 100
)

// API endpoints
const (
	APIEndpointQueueStatus    = "/api/v1/events/%s/queue/status"
	APIEndpointMoveToBack     = "/api/v1/events/%s/queue/move-to-back"
	APIEndpointProcessUntilMe = "/api/v1/events/%s/queue/process-until-me"
	APIEndpointSeats          = "/api/v1/events/%s/seats"
	APIEndpointSelectSeat     = "/api/v1/events/%s/seats/%d/select"
	APIEndpointDeselectSeat   = "/api/v1/events/%s/seats/%d/deselect"
	APIEndpointHealth         = "/health"
	WebSocketEndpoint         = "/ws"
)

// PersonalQueueTopic returns the personal queue event destination for a user.
func PersonalQueueTopic(userID string) string {
	return fmt.Sprintf(TopicPersonalQueue, userID)
}

// EventQueueTopic returns the queue broadcast destination for an event.
func EventQueueTopic(eventID string) string {
	return fmt.Sprintf(TopicEventQueue, eventID)
}

// EventSeatTopic returns the seat broadcast destination for an event.
func EventSeatTopic(eventID string) string {
	return fmt.Sprintf(TopicEventSeats, eventID)
}
