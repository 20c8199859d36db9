package queue

import "encoding/json"

// Job kinds carried on the queue.
const (
	KindInitial  = "initial"
	KindRevision = "revision"
)

// Message is the payload sent to the generation worker. Initial-batch jobs
// carry no revision id; revision jobs carry both ids.
type Message struct {
	Kind       string `json:"kind"`
	ProjectID  string `json:"projectId"`
	RevisionID string `json:"revisionId,omitempty"`
	RequestID  string `json:"requestId"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
