package models

import "fmt"

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusCalled    Status = "called"
	StatusServed    Status = "served"
	StatusLeft      Status = "left"
	StatusCancelled Status = "cancelled"
)

var allStatuses = []Status{StatusWaiting, StatusCalled, StatusServed, StatusLeft, StatusCancelled}

func ParseStatus(raw string) (Status, error) {
	for _, status := range allStatuses {
		if string(status) == raw {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown ticket status %q", raw)
}

// Active reports whether the ticket still holds a place in line.
func (s Status) Active() bool {
	return s == StatusWaiting || s == StatusCalled
}

func (s Status) Terminal() bool {
	return s == StatusServed || s == StatusLeft || s == StatusCancelled
}

func (s Status) Valid() bool {
	for _, status := range allStatuses {
		if status == s {
			return true
		}
	}
	return false
}
