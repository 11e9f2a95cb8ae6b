package service

import (
	"context"
	"fmt"
	"strings"

	"qms/walkin-queue/internal/models"
	"qms/walkin-queue/internal/store"
)

// MaxAvgServiceMinutes caps the per-person estimate a queue can be configured with.
const MaxAvgServiceMinutes = 24 * 60

type CreateQueueInput struct {
	Name string
	// AvgServiceMinutes of zero uses the configured default estimate.
	AvgServiceMinutes int
	CustomMessage     string
}

type QueueSettings struct {
	IsOpen            *bool
	CustomMessage     *string
	AvgServiceMinutes *int
}

func (s *Service) ListQueues(ctx context.Context) ([]models.Queue, error) {
	return s.store.ListQueues(ctx)
}

func (s *Service) GetQueue(ctx context.Context, queueID string) (models.Queue, error) {
	return s.store.GetQueue(ctx, queueID)
}

func (s *Service) CreateQueue(ctx context.Context, input CreateQueueInput) (models.Queue, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return models.Queue{}, store.Invalid("name", "name is required")
	}
	if err := checkAvgServiceMinutes(input.AvgServiceMinutes); err != nil {
		return models.Queue{}, err
	}
	avg := s.defaultAvg
	if input.AvgServiceMinutes > 0 {
		avg = input.AvgServiceMinutes * 60
	}
	queue, err := s.store.CreateQueue(ctx, store.CreateQueueInput{
		Name:              name,
		AvgServiceSeconds: avg,
		CustomMessage:     strings.TrimSpace(input.CustomMessage),
		CreatedAt:         s.now(),
	})
	if err != nil {
		return models.Queue{}, err
	}
	s.logger.Info("queue created", "queue_id", queue.ID, "name", queue.Name)
	return queue, nil
}

// UpdateSettings applies a partial update. The average service time is given in minutes and
// never drops below one minute.
func (s *Service) UpdateSettings(ctx context.Context, queueID string, settings QueueSettings) (models.Queue, error) {
	patch := store.QueueSettingsPatch{
		IsOpen:        settings.IsOpen,
		CustomMessage: settings.CustomMessage,
	}
	if settings.AvgServiceMinutes != nil {
		minutes := *settings.AvgServiceMinutes
		if minutes > MaxAvgServiceMinutes {
			return models.Queue{}, avgServiceMinutesError()
		}
		if minutes < 1 {
			minutes = 1
		}
		seconds := minutes * 60
		patch.AvgServiceSeconds = &seconds
	}
	queue, err := s.store.UpdateQueueSettings(ctx, queueID, patch)
	if err != nil {
		return models.Queue{}, err
	}
	if patch.AvgServiceSeconds != nil {
		s.estimator.Invalidate(ctx, queueID)
	}
	return queue, nil
}

func checkAvgServiceMinutes(minutes int) error {
	if minutes < 0 || minutes > MaxAvgServiceMinutes {
		return avgServiceMinutesError()
	}
	return nil
}

func avgServiceMinutesError() error {
	return store.Invalid("avg_service_minutes", fmt.Sprintf("avg_service_minutes must be between 0 and %d", MaxAvgServiceMinutes))
}

func (s *Service) ToggleQueue(ctx context.Context, queueID string) (models.Queue, error) {
	queue, err := s.store.ToggleQueue(ctx, queueID)
	if err != nil {
		return models.Queue{}, err
	}
	s.logger.Info("queue toggled", "queue_id", queue.ID, "is_open", queue.IsOpen)
	return queue, nil
}

func (s *Service) DeleteQueue(ctx context.Context, queueID string, force bool) error {
	if err := s.store.DeleteQueue(ctx, queueID, force); err != nil {
		return err
	}
	s.estimator.Invalidate(ctx, queueID)
	s.logger.Info("queue deleted", "queue_id", queueID, "force", force)
	return nil
}
