package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"water-monitoring/internal/apperr"
	"water-monitoring/internal/model"
	"water-monitoring/internal/repository"
	"water-monitoring/internal/threshold"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// LocationService serves the station registry and keeps the snapshot
// used to validate submissions.
type LocationService interface {
	ListLocations(ctx context.Context) ([]model.Location, error)
	Lookup(ctx context.Context, id string) (*model.Location, error)
	EvaluateStatus(ctx context.Context, id, rawLevel string) (*StatusResult, error)
}

// StatusResult is the live classification of a not-yet-submitted reading
type StatusResult struct {
	LocationID string                `json:"location_id"`
	Status     threshold.Status      `json:"status"`
	Message    string                `json:"message"`
	Thresholds *threshold.Thresholds `json:"thresholds,omitempty"`
}

type locationService struct {
	repo    repository.LocationRepository
	timeout time.Duration

	mu       sync.RWMutex
	snapshot map[string]model.Location
	refresh  singleflight.Group
}

// NewLocationService creates a new location service
func NewLocationService(repo repository.LocationRepository, timeout time.Duration) LocationService {
	return &locationService{
		repo:     repo,
		timeout:  timeout,
		snapshot: map[string]model.Location{},
	}
}

// ListLocations reads the registry ordered by name and replaces the snapshot
func (s *locationService) ListLocations(ctx context.Context) ([]model.Location, error) {
	return s.refreshSnapshot(ctx)
}

// Lookup resolves a station from the snapshot. A miss reads the station from
// the store and adds it to the snapshot.
func (s *locationService) Lookup(ctx context.Context, id string) (*model.Location, error) {
	if loc, ok := s.cached(id); ok {
		return &loc, nil
	}
	notFound := apperr.NewNotFoundError(fmt.Sprintf("location %s not found", id), repository.ErrLocationNotFound)
	if _, err := uuid.Parse(id); err != nil {
		return nil, notFound
	}

	var loc *model.Location
	err := callCollaborator(ctx, s.timeout, "get location", func(ctx context.Context) error {
		var err error
		loc, err = s.repo.GetLocation(ctx, id)
		if errors.Is(err, repository.ErrLocationNotFound) {
			return notFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.snapshot[loc.ID] = *loc
	s.mu.Unlock()
	return loc, nil
}

// EvaluateStatus classifies rawLevel against the station thresholds.
// Stations without thresholds and unparsable input report no status.
func (s *locationService) EvaluateStatus(ctx context.Context, id, rawLevel string) (*StatusResult, error) {
	loc, err := s.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &StatusResult{LocationID: loc.ID, Status: threshold.StatusNone}
	t, ok := loc.Thresholds()
	if !ok {
		return result, nil
	}
	result.Thresholds = &t
	result.Status = threshold.EvaluateInput(rawLevel, t)
	result.Message = result.Status.Message()
	return result, nil
}

func (s *locationService) cached(id string) (model.Location, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.snapshot[id]
	return loc, ok
}

// refreshSnapshot collapses concurrent refreshes into one registry read
func (s *locationService) refreshSnapshot(ctx context.Context) ([]model.Location, error) {
	v, err, _ := s.refresh.Do("registry", func() (interface{}, error) {
		var locations []model.Location
		err := callCollaborator(ctx, s.timeout, "list locations", func(ctx context.Context) error {
			var err error
			locations, err = s.repo.ListLocations(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}

		snapshot := make(map[string]model.Location, len(locations))
		for _, loc := range locations {
			snapshot[loc.ID] = loc
		}
		s.mu.Lock()
		s.snapshot = snapshot
		s.mu.Unlock()

		return locations, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Location), nil
}
