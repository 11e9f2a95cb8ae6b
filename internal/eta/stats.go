// Package eta estimates service times and projects queue positions into wait times.
package eta

import (
	"sort"

	"qms/walkin-queue/internal/models"
)

const (
	RecentWindow = 5
	RecentWeight = 0.7
	DailyWeight  = 0.3
)

type ServiceStats struct {
	RecentAvgSeconds float64 `json:"recent_avg_sec"`
	DailyAvgSeconds  float64 `json:"daily_avg_sec"`
	Samples          int     `json:"samples"`
	Fallback         bool    `json:"fallback"`
}

// BaseSeconds blends the recent and daily averages into the per-person service time.
func (s ServiceStats) BaseSeconds() float64 {
	return RecentWeight*s.RecentAvgSeconds + DailyWeight*s.DailyAvgSeconds
}

func FallbackStats(seconds float64) ServiceStats {
	return ServiceStats{RecentAvgSeconds: seconds, DailyAvgSeconds: seconds, Fallback: true}
}

// ComputeStats derives service averages from served tickets. Tickets that are not served, have
// no served time, or have a non-positive duration are ignored.
func ComputeStats(tickets []models.Ticket, fallbackSeconds float64) ServiceStats {
	type sample struct {
		ticket   models.Ticket
		duration float64
	}
	var samples []sample
	for _, ticket := range tickets {
		if ticket.Status != models.StatusServed || ticket.ServedAt == nil {
			continue
		}
		duration := ticket.ServedAt.Sub(ticket.CreatedAt).Seconds()
		if duration <= 0 {
			continue
		}
		samples = append(samples, sample{ticket: ticket, duration: duration})
	}
	if len(samples) == 0 {
		return FallbackStats(fallbackSeconds)
	}

	sort.SliceStable(samples, func(i, j int) bool {
		a, b := samples[i].ticket, samples[j].ticket
		if !a.ServedAt.Equal(*b.ServedAt) {
			return a.ServedAt.After(*b.ServedAt)
		}
		return a.Seq > b.Seq
	})

	var dailyTotal, recentTotal float64
	recentCount := 0
	for i, s := range samples {
		dailyTotal += s.duration
		if i < RecentWindow {
			recentTotal += s.duration
			recentCount++
		}
	}
	return ServiceStats{
		RecentAvgSeconds: recentTotal / float64(recentCount),
		DailyAvgSeconds:  dailyTotal / float64(len(samples)),
		Samples:          len(samples),
	}
}
