package repository

import (
	"context"
	"errors"

	"water-monitoring/internal/model"

	"gorm.io/gorm"
)

// LocationRepository reads the monitoring station registry
type LocationRepository interface {
	ListLocations(ctx context.Context) ([]model.Location, error)
	GetLocation(ctx context.Context, id string) (*model.Location, error)
}

// ErrLocationNotFound is returned when no station has the requested id
var ErrLocationNotFound = errors.New("location not found")

type locationRepository struct {
	db *gorm.DB
}

// NewLocationRepository creates a new location repository
func NewLocationRepository(db *gorm.DB) LocationRepository {
	return &locationRepository{db: db}
}

// ListLocations returns every station ordered by name
func (r *locationRepository) ListLocations(ctx context.Context) ([]model.Location, error) {
	var locations []model.Location
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&locations).Error; err != nil {
		return nil, err
	}
	return locations, nil
}

// GetLocation fetches a single station
func (r *locationRepository) GetLocation(ctx context.Context, id string) (*model.Location, error) {
	var location model.Location
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&location).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLocationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &location, nil
}
