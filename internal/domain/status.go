package domain

import "time"

// StatusCheck is a client liveness ping recorded for diagnostics
type StatusCheck struct {
	ID         string    `json:"id"`
	ClientName string    `json:"client_name"`
	Timestamp  time.Time `json:"timestamp"`
}
