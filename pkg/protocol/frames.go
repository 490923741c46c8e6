// Package protocol defines the wire format for the carelink notification hub.
// This package is importable by external clients.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Protocol version. The hub includes this in the subscribe ack.
const ProtocolVersion = 1

// Frame types
const (
	FrameTypeSubscribe = "subscribe"
	FrameTypeAck       = "ack"
	FrameTypeEvent     = "event"
	FrameTypeError     = "error"
)

// SubscribeFrame is sent by a client to attach to a single topic.
// A connection carries exactly one subscription; sending a second
// subscribe frame replaces the first.
type SubscribeFrame struct {
	Type  string `json:"type"` // always "subscribe"
	Topic string `json:"topic"`
}

// AckFrame confirms an accepted subscription.
type AckFrame struct {
	Type     string `json:"type"` // always "ack"
	Topic    string `json:"topic"`
	Protocol int    `json:"protocol"`
}

// EventFrame carries one notification event published to the topic.
type EventFrame struct {
	Type  string `json:"type"` // always "event"
	Topic string `json:"topic"`
	Event Event  `json:"event"`
}

// ErrorFrame reports a protocol-level failure (bad frame, bad topic).
type ErrorFrame struct {
	Type    string `json:"type"` // always "error"
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParseFrameType extracts the frame type from raw JSON bytes.
func ParseFrameType(data []byte) (string, error) {
	var raw struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", err
	}
	return raw.Type, nil
}

// Topic roles. A topic addresses all pairing events for one user in one role.
const (
	RoleElderly   = "elderly"
	RoleCaregiver = "caregiver"
)

// TopicElderly returns the topic carrying events addressed to an elderly user.
func TopicElderly(userID string) string { return RoleElderly + "-" + userID }

// TopicCaregiver returns the topic carrying events addressed to a caregiver.
func TopicCaregiver(userID string) string { return RoleCaregiver + "-" + userID }

// TopicForRole derives the topic for a (role, user) pair.
func TopicForRole(role, userID string) (string, error) {
	switch role {
	case RoleElderly:
		return TopicElderly(userID), nil
	case RoleCaregiver:
		return TopicCaregiver(userID), nil
	default:
		return "", fmt.Errorf("unknown role %q", role)
	}
}

// ParseTopic splits a topic into its role and user identifier.
func ParseTopic(topic string) (role, userID string, err error) {
	role, userID, ok := strings.Cut(topic, "-")
	if !ok || userID == "" || (role != RoleElderly && role != RoleCaregiver) {
		return "", "", fmt.Errorf("invalid topic %q", topic)
	}
	return role, userID, nil
}
