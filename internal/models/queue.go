package models

import "time"

const DefaultAvgServiceSeconds = 300

type Queue struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	IsOpen            bool      `json:"is_open"`
	CustomMessage     string    `json:"custom_message"`
	AvgServiceSeconds int       `json:"avg_service_seconds"`
	CreatedAt         time.Time `json:"created_at"`
}

// AvgServiceMinutes rounds the configured estimate to whole minutes for display.
func (q Queue) AvgServiceMinutes() int {
	return (q.AvgServiceSeconds + 30) / 60
}
