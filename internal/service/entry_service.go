package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"water-monitoring/internal/apperr"
	"water-monitoring/internal/model"
	"water-monitoring/internal/observability"
	"water-monitoring/internal/repository"
	"water-monitoring/internal/threshold"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// Form steps: water levels are kept to the millimetre, rainfall to 0.1 mm
const (
	waterLevelScale = 1000
	rainfallScale   = 10
)

// WaterLevelInput is the water level entry form
type WaterLevelInput struct {
	LocationID      string                `json:"location_id"`
	WaterLevel      *float64              `json:"water_level"`
	MeasurementType model.MeasurementType `json:"measurement_type,omitempty"`
	Notes           string                `json:"notes,omitempty"`
}

// RainfallInput is the rainfall entry form; DurationHours defaults to 1
type RainfallInput struct {
	LocationID      string                `json:"location_id"`
	RainfallAmount  *float64              `json:"rainfall_amount"`
	DurationHours   int                   `json:"duration_hours,omitempty"`
	MeasurementType model.MeasurementType `json:"measurement_type,omitempty"`
	Notes           string                `json:"notes,omitempty"`
}

// SubmitResult describes the stored row. Duplicate is set for callers that
// joined a submission already in flight for the same form.
type SubmitResult struct {
	MeasurementID string           `json:"measurement_id"`
	Kind          Kind             `json:"kind"`
	LocationID    string           `json:"location_id"`
	LocationName  string           `json:"location_name"`
	Value         float64          `json:"value"`
	RecordedBy    string           `json:"recorded_by"`
	RecordedAt    time.Time        `json:"recorded_at"`
	Status        threshold.Status `json:"status,omitempty"`
	Message       string           `json:"message,omitempty"`
	Duplicate     bool             `json:"duplicate"`
}

// AlertPublisher receives water level alerts raised by submissions
type AlertPublisher interface {
	PublishAlert(ctx context.Context, alert model.LevelAlert) error
}

// EntryService records manual measurements
type EntryService interface {
	SubmitWaterLevel(ctx context.Context, identity *model.Identity, formKey string, in WaterLevelInput) (*SubmitResult, error)
	SubmitRainfall(ctx context.Context, identity *model.Identity, formKey string, in RainfallInput) (*SubmitResult, error)
}

// EntryDeps groups the collaborators of the entry service. Alerts may be nil.
type EntryDeps struct {
	Locations    LocationService
	Measurements repository.MeasurementRepository
	Alerts       AlertPublisher
	Clock        clockwork.Clock
	Metrics      *observability.Metrics
	Logger       *slog.Logger
	Timeout      time.Duration
}

type entryService struct {
	EntryDeps

	inflight singleflight.Group
	seq      atomic.Uint64
}

// flight carries the leader's ticket so joiners can tell they were duplicates
type flight struct {
	ticket uint64
	result *SubmitResult
}

// NewEntryService creates a new entry service
func NewEntryService(deps EntryDeps) EntryService {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &entryService{EntryDeps: deps}
}

// SubmitWaterLevel validates and stores one water level reading
func (s *entryService) SubmitWaterLevel(ctx context.Context, identity *model.Identity, formKey string, in WaterLevelInput) (*SubmitResult, error) {
	if err := AuthorizeEntry(identity); err != nil {
		s.countSubmission(KindWaterLevel, err)
		return nil, err
	}

	locationID := strings.TrimSpace(in.LocationID)
	if locationID == "" {
		return nil, s.invalid(KindWaterLevel, "location_id is required")
	}
	if in.WaterLevel == nil {
		return nil, s.invalid(KindWaterLevel, "water_level is required")
	}
	if !finite(*in.WaterLevel) {
		return nil, s.invalid(KindWaterLevel, "water_level must be a finite number")
	}
	measurementType, err := measurementTypeOrDefault(in.MeasurementType)
	if err != nil {
		s.countSubmission(KindWaterLevel, err)
		return nil, err
	}

	return s.singleFlight(ctx, KindWaterLevel, identity, formKey, func(ctx context.Context) (*SubmitResult, error) {
		loc, err := s.registered(ctx, locationID)
		if err != nil {
			return nil, err
		}

		m := &model.WaterLevelMeasurement{
			LocationID:      loc.ID,
			RecordedBy:      identity.UserID,
			WaterLevel:      roundToStep(*in.WaterLevel, waterLevelScale),
			MeasurementType: measurementType,
			Notes:           optionalNotes(in.Notes),
			RecordedAt:      s.Clock.Now().UTC(),
		}
		err = callCollaborator(ctx, s.Timeout, "insert water level", func(ctx context.Context) error {
			return s.Measurements.InsertWaterLevel(ctx, m)
		})
		if err != nil {
			return nil, err
		}

		result := &SubmitResult{
			MeasurementID: m.ID,
			Kind:          KindWaterLevel,
			LocationID:    loc.ID,
			LocationName:  loc.Name,
			Value:         m.WaterLevel,
			RecordedBy:    m.RecordedBy,
			RecordedAt:    m.RecordedAt,
		}
		if t, ok := loc.Thresholds(); ok {
			result.Status = threshold.Evaluate(m.WaterLevel, t)
			result.Message = result.Status.Message()
			if result.Status.Alerting() {
				s.publishAlert(ctx, loc, t, m, result.Status)
			}
		}

		s.Logger.Info("water level recorded",
			"measurement_id", m.ID,
			"location_id", loc.ID,
			"water_level", m.WaterLevel,
			"status", string(result.Status),
			"recorded_by", m.RecordedBy,
		)
		return result, nil
	})
}

// SubmitRainfall validates and stores one rainfall reading
func (s *entryService) SubmitRainfall(ctx context.Context, identity *model.Identity, formKey string, in RainfallInput) (*SubmitResult, error) {
	if err := AuthorizeEntry(identity); err != nil {
		s.countSubmission(KindRainfall, err)
		return nil, err
	}

	locationID := strings.TrimSpace(in.LocationID)
	if locationID == "" {
		return nil, s.invalid(KindRainfall, "location_id is required")
	}
	if in.RainfallAmount == nil {
		return nil, s.invalid(KindRainfall, "rainfall_amount is required")
	}
	if !finite(*in.RainfallAmount) {
		return nil, s.invalid(KindRainfall, "rainfall_amount must be a finite number")
	}
	if *in.RainfallAmount < 0 {
		return nil, s.invalid(KindRainfall, "rainfall_amount must not be negative")
	}
	duration := in.DurationHours
	if duration == 0 {
		duration = 1
	}
	if !model.ValidRainfallDuration(duration) {
		return nil, s.invalid(KindRainfall, fmt.Sprintf("duration_hours must be one of %v", model.RainfallDurations))
	}
	measurementType, err := measurementTypeOrDefault(in.MeasurementType)
	if err != nil {
		s.countSubmission(KindRainfall, err)
		return nil, err
	}

	return s.singleFlight(ctx, KindRainfall, identity, formKey, func(ctx context.Context) (*SubmitResult, error) {
		loc, err := s.registered(ctx, locationID)
		if err != nil {
			return nil, err
		}

		m := &model.RainfallMeasurement{
			LocationID:      loc.ID,
			RecordedBy:      identity.UserID,
			RainfallAmount:  roundToStep(*in.RainfallAmount, rainfallScale),
			DurationHours:   duration,
			MeasurementType: measurementType,
			Notes:           optionalNotes(in.Notes),
			RecordedAt:      s.Clock.Now().UTC(),
		}
		err = callCollaborator(ctx, s.Timeout, "insert rainfall", func(ctx context.Context) error {
			return s.Measurements.InsertRainfall(ctx, m)
		})
		if err != nil {
			return nil, err
		}

		s.Logger.Info("rainfall recorded",
			"measurement_id", m.ID,
			"location_id", loc.ID,
			"rainfall_amount", m.RainfallAmount,
			"duration_hours", m.DurationHours,
			"recorded_by", m.RecordedBy,
		)
		return &SubmitResult{
			MeasurementID: m.ID,
			Kind:          KindRainfall,
			LocationID:    loc.ID,
			LocationName:  loc.Name,
			Value:         m.RainfallAmount,
			RecordedBy:    m.RecordedBy,
			RecordedAt:    m.RecordedAt,
		}, nil
	})
}

// singleFlight runs write at most once at a time per form key. Callers that
// arrive while a write is pending share its outcome and are marked duplicate.
func (s *entryService) singleFlight(ctx context.Context, kind Kind, identity *model.Identity, formKey string, write func(context.Context) (*SubmitResult, error)) (*SubmitResult, error) {
	if formKey == "" {
		formKey = identity.UserID + ":" + string(kind)
	}
	key := string(kind) + "|" + formKey
	ticket := s.seq.Add(1)

	v, err, _ := s.inflight.Do(key, func() (interface{}, error) {
		// Joiners share this write, so the leader's cancellation must not
		// abort it; the collaborator timeout still bounds it
		result, err := write(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		return flight{ticket: ticket, result: result}, nil
	})
	if err != nil {
		s.countSubmission(kind, err)
		return nil, err
	}

	f := v.(flight)
	result := *f.result
	result.Duplicate = f.ticket != ticket
	if result.Duplicate {
		s.Metrics.Submissions.WithLabelValues(string(kind), "duplicate").Inc()
		s.Logger.Warn("duplicate submission joined in-flight write",
			"kind", string(kind),
			"form_key", formKey,
			"measurement_id", result.MeasurementID,
		)
	} else {
		s.Metrics.Submissions.WithLabelValues(string(kind), "success").Inc()
	}
	return &result, nil
}

// registered resolves a location id, turning an unknown id into a validation failure
func (s *entryService) registered(ctx context.Context, id string) (*model.Location, error) {
	loc, err := s.Locations.Lookup(ctx, id)
	if apperr.IsNotFound(err) {
		return nil, apperr.NewValidationError(fmt.Sprintf("location %s is not in the registry", id), err)
	}
	return loc, err
}

func (s *entryService) publishAlert(ctx context.Context, loc *model.Location, t threshold.Thresholds, m *model.WaterLevelMeasurement, status threshold.Status) {
	if s.Alerts == nil {
		return
	}
	alert := model.LevelAlert{
		MeasurementID: m.ID,
		LocationID:    loc.ID,
		LocationName:  loc.Name,
		WaterLevel:    m.WaterLevel,
		MinLevel:      t.Min,
		MaxLevel:      t.Max,
		Status:        string(status),
		Message:       status.Message(),
		RecordedBy:    m.RecordedBy,
		RecordedAt:    m.RecordedAt,
	}
	err := callCollaborator(ctx, s.Timeout, "publish alert", func(ctx context.Context) error {
		return s.Alerts.PublishAlert(ctx, alert)
	})
	if err != nil {
		s.Metrics.AlertsPublished.WithLabelValues(string(status), "error").Inc()
		s.Logger.Error("failed to publish level alert",
			"measurement_id", m.ID,
			"location_id", loc.ID,
			"status", string(status),
			"error", err.Error(),
		)
		return
	}
	s.Metrics.AlertsPublished.WithLabelValues(string(status), "success").Inc()
}

func (s *entryService) invalid(kind Kind, msg string) error {
	err := apperr.NewValidationError(msg, nil)
	s.countSubmission(kind, err)
	return err
}

func (s *entryService) countSubmission(kind Kind, err error) {
	outcome := "error"
	switch {
	case apperr.IsValidation(err):
		outcome = "validation"
	case apperr.IsAuth(err), apperr.IsAuthorization(err):
		outcome = "auth"
	}
	s.Metrics.Submissions.WithLabelValues(string(kind), outcome).Inc()
}

// AuthorizeEntry requires an identity whose role may record measurements
func AuthorizeEntry(identity *model.Identity) error {
	if identity == nil || identity.UserID == "" {
		return apperr.NewAuthError("sign in to record measurements", nil)
	}
	if !identity.Role.CanRecord() {
		return apperr.NewAuthorizationError(fmt.Sprintf("role %s cannot record measurements", identity.Role), nil)
	}
	return nil
}

func measurementTypeOrDefault(t model.MeasurementType) (model.MeasurementType, error) {
	if t == "" {
		return model.MeasurementManual, nil
	}
	if !t.Valid() {
		return "", apperr.NewValidationError(fmt.Sprintf("unknown measurement_type %q", t), nil)
	}
	return t, nil
}

func optionalNotes(notes string) *string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil
	}
	return &notes
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func roundToStep(v, scale float64) float64 {
	return math.Round(v*scale) / scale
}
