// Package queue defines message payloads exchanged over the message broker.
package queue

// UserEvent is published to the user-events queue whenever an account
// changes state: USER_REGISTERED on registration, USER_LOGIN on a
// successful login, USER_LOGOUT when a user revokes their sessions.
// Consumers get enough identity context to notify or audit without
// querying the primary database. Role is only set on registration.
type UserEvent struct {
	EventType string  `json:"eventType"`
	UserID    uint64  `json:"userId"`
	Email     string  `json:"email"`
	Role      string  `json:"role,omitempty"`
	TenantID  string  `json:"tenantId"`
	AcademyID *uint64 `json:"academyId,omitempty"`
}

// Event type discriminators carried in UserEvent.EventType.
const (
	EventUserRegistered = "USER_REGISTERED"
	EventUserLogin      = "USER_LOGIN"
	EventUserLogout     = "USER_LOGOUT"
)

// UserEventsQueue is the durable queue all user events are published to.
const UserEventsQueue = "user-events"
