package services

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/searchforge/relevance/internal/domain/entities"
	"github.com/searchforge/relevance/internal/domain/repositories"
	apperrors "github.com/searchforge/relevance/pkg/errors"
)

// ExperimentConfig tunes the statistical readout.
type ExperimentConfig struct {
	// MinSampleSize is the per-variant participant floor before a
	// comparison is considered meaningful
	MinSampleSize int
	// ConfidenceLevel is the required confidence, e.g. 0.95
	ConfidenceLevel float64
}

// DefaultExperimentConfig mirrors the production tuning.
func DefaultExperimentConfig() ExperimentConfig {
	return ExperimentConfig{
		MinSampleSize:   100,
		ConfidenceLevel: 0.95,
	}
}

// ExperimentService runs A/B tests: lifecycle, deterministic sticky
// variant assignment, event tracking, and a two-proportion z-test
// readout against the control variant.
type ExperimentService struct {
	repo repositories.ExperimentRepository
	cfg  ExperimentConfig
	now  func() time.Time
}

// NewExperimentService creates an experiment service over the store.
func NewExperimentService(repo repositories.ExperimentRepository, cfg ExperimentConfig) *ExperimentService {
	if cfg.MinSampleSize <= 0 {
		cfg.MinSampleSize = 100
	}
	if cfg.ConfidenceLevel <= 0 || cfg.ConfidenceLevel >= 1 {
		cfg.ConfidenceLevel = 0.95
	}
	return &ExperimentService{
		repo: repo,
		cfg:  cfg,
		now:  time.Now,
	}
}

// Create validates and persists a new experiment in draft status.
func (s *ExperimentService) Create(ctx context.Context, exp *entities.Experiment) error {
	if exp.Name == "" {
		return apperrors.NewValidationError("experiment name is required")
	}
	if len(exp.Variants) < 2 {
		return apperrors.NewValidationError("an experiment needs at least 2 variants")
	}
	if exp.TrafficPercentage < 0 || exp.TrafficPercentage > 100 {
		return apperrors.NewValidationError("traffic_percentage must be between 0 and 100")
	}
	if exp.PrimaryMetric == "" {
		exp.PrimaryMetric = "click"
	}

	if exp.ID == "" {
		exp.ID = uuid.New().String()
	}
	exp.Status = entities.ExperimentDraft
	exp.CreatedAt = s.now()
	exp.UpdatedAt = exp.CreatedAt

	return s.repo.CreateExperiment(ctx, exp)
}

// GetByName returns an experiment by its unique name.
func (s *ExperimentService) GetByName(ctx context.Context, name string) (*entities.Experiment, error) {
	return s.repo.GetByName(ctx, name)
}

// Start moves a draft or paused experiment to running.
func (s *ExperimentService) Start(ctx context.Context, name string) error {
	return s.transition(ctx, name, entities.ExperimentRunning,
		entities.ExperimentDraft, entities.ExperimentPaused)
}

// Pause temporarily halts a running experiment. Assignments stay sticky.
func (s *ExperimentService) Pause(ctx context.Context, name string) error {
	return s.transition(ctx, name, entities.ExperimentPaused,
		entities.ExperimentRunning)
}

// Resume restarts a paused experiment.
func (s *ExperimentService) Resume(ctx context.Context, name string) error {
	return s.transition(ctx, name, entities.ExperimentRunning,
		entities.ExperimentPaused)
}

// Stop completes a running or paused experiment.
func (s *ExperimentService) Stop(ctx context.Context, name string) error {
	return s.transition(ctx, name, entities.ExperimentCompleted,
		entities.ExperimentRunning, entities.ExperimentPaused)
}

// Cancel abandons any experiment that has not finished.
func (s *ExperimentService) Cancel(ctx context.Context, name string) error {
	return s.transition(ctx, name, entities.ExperimentCancelled,
		entities.ExperimentDraft, entities.ExperimentRunning, entities.ExperimentPaused)
}

func (s *ExperimentService) transition(ctx context.Context, name string, to entities.ExperimentStatus, from ...entities.ExperimentStatus) error {
	exp, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return err
	}

	allowed := false
	for _, status := range from {
		if exp.Status == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return apperrors.NewValidationError(
			fmt.Sprintf("cannot move experiment %q from %s to %s", name, exp.Status, to))
	}

	now := s.now()
	exp.Status = to
	exp.UpdatedAt = now
	if to == entities.ExperimentRunning && exp.StartedAt == nil {
		exp.StartedAt = &now
	}
	if to == entities.ExperimentCompleted || to == entities.ExperimentCancelled {
		exp.EndedAt = &now
	}

	return s.repo.UpdateStatus(ctx, exp)
}

// GetVariant returns the sticky variant for (experiment, user), assigning
// one deterministically on first contact. An empty variant means the user
// is not in the experiment: it is not running, or the user falls outside
// the traffic slice.
func (s *ExperimentService) GetVariant(ctx context.Context, experimentName, userID string) (string, error) {
	if userID == "" {
		return "", nil
	}

	exp, err := s.repo.GetByName(ctx, experimentName)
	if err != nil {
		return "", err
	}
	if exp.Status != entities.ExperimentRunning {
		return "", nil
	}

	// Sticky: an existing assignment always wins, even if traffic or
	// variants have since changed.
	existing, err := s.repo.GetAssignment(ctx, exp.ID, userID)
	if err != nil && !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return "", err
	}
	if existing != nil {
		return existing.Variant, nil
	}

	if bucketHash(userID)%100 >= uint32(exp.TrafficPercentage) {
		return "", nil
	}

	names := exp.VariantNames()
	if len(names) == 0 {
		return "", nil
	}
	variant := names[bucketHash(experimentName+":"+userID)%uint32(len(names))]

	assignment := &entities.ExperimentAssignment{
		ExperimentID: exp.ID,
		UserID:       userID,
		Variant:      variant,
		AssignedAt:   s.now(),
	}
	if err := s.repo.CreateAssignment(ctx, assignment); err != nil {
		// A concurrent request won the insert race; the stored row is
		// the truth.
		if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
			stored, readErr := s.repo.GetAssignment(ctx, exp.ID, userID)
			if readErr != nil {
				return "", readErr
			}
			return stored.Variant, nil
		}
		return "", err
	}

	return variant, nil
}

// VariantConfig resolves the user's variant and returns its config blob,
// or nil when the user has no variant.
func (s *ExperimentService) VariantConfig(ctx context.Context, experimentName, userID string) (string, json.RawMessage, error) {
	variant, err := s.GetVariant(ctx, experimentName, userID)
	if err != nil || variant == "" {
		return "", nil, err
	}
	exp, err := s.repo.GetByName(ctx, experimentName)
	if err != nil {
		return "", nil, err
	}
	return variant, exp.Variants[variant], nil
}

// TrackEvent appends an observation for a user. The user must already
// hold an assignment; events never create one.
func (s *ExperimentService) TrackEvent(ctx context.Context, experimentName, userID, eventType string, value float64) error {
	exp, err := s.repo.GetByName(ctx, experimentName)
	if err != nil {
		return err
	}

	assignment, err := s.repo.GetAssignment(ctx, exp.ID, userID)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return apperrors.NewValidationError(
				fmt.Sprintf("user %q has no assignment in experiment %q", userID, experimentName))
		}
		return err
	}

	return s.repo.InsertEvent(ctx, &entities.ExperimentEvent{
		ID:           uuid.New().String(),
		ExperimentID: exp.ID,
		UserID:       userID,
		Variant:      assignment.Variant,
		EventType:    eventType,
		Value:        value,
		CreatedAt:    s.now(),
	})
}

// GetResults analyzes an experiment: per-variant participation and
// conversion, a two-proportion z-test of each variant against the
// control, and a textual recommendation.
func (s *ExperimentService) GetResults(ctx context.Context, experimentName string) (*entities.ExperimentResults, error) {
	exp, err := s.repo.GetByName(ctx, experimentName)
	if err != nil {
		return nil, err
	}

	results := &entities.ExperimentResults{
		ExperimentName: exp.Name,
		Status:         exp.Status,
	}

	if exp.Status == entities.ExperimentDraft || exp.StartedAt == nil {
		results.Recommendation = "Experiment has not started yet; start it to begin collecting data."
		return results, nil
	}

	participants, err := s.repo.CountAssignmentsByVariant(ctx, exp.ID)
	if err != nil {
		return nil, err
	}
	converters, err := s.repo.CountConvertersByVariant(ctx, exp.ID, []string{exp.PrimaryMetric})
	if err != nil {
		return nil, err
	}

	control := exp.ControlVariant()
	controlResult := variantResult(control, participants[control], converters[control], true)

	var bestVariant *entities.VariantResult
	for _, name := range exp.VariantNames() {
		if name == control {
			continue
		}
		vr := variantResult(name, participants[name], converters[name], false)

		if vr.Participants >= s.cfg.MinSampleSize && controlResult.Participants >= s.cfg.MinSampleSize {
			vr.PValue = twoProportionPValue(
				controlResult.Conversions, controlResult.Participants,
				vr.Conversions, vr.Participants,
			)
			vr.IsSignificant = vr.PValue < 1-s.cfg.ConfidenceLevel
		}

		if vr.IsSignificant && vr.ConversionRate > controlResult.ConversionRate {
			if bestVariant == nil || vr.ConversionRate > bestVariant.ConversionRate {
				copied := vr
				bestVariant = &copied
			}
		}
		results.Variants = append(results.Variants, vr)
	}
	// Control first, challengers in stable order after it.
	results.Variants = append([]entities.VariantResult{controlResult}, results.Variants...)

	enoughData := controlResult.Participants >= s.cfg.MinSampleSize
	for _, vr := range results.Variants {
		if !vr.IsControl && vr.Participants < s.cfg.MinSampleSize {
			enoughData = false
		}
	}

	switch {
	case bestVariant != nil:
		results.IsSignificant = true
		results.Winner = bestVariant.Variant
		results.Recommendation = fmt.Sprintf(
			"Variant %q shows a statistically significant lift over %q (%.2f%% vs %.2f%%); consider rolling it out.",
			bestVariant.Variant, control,
			bestVariant.ConversionRate*100, controlResult.ConversionRate*100)
	case !enoughData:
		results.Recommendation = fmt.Sprintf(
			"Insufficient data: each variant needs at least %d participants before results are meaningful.",
			s.cfg.MinSampleSize)
	case anySignificant(results.Variants):
		// Significant, but no challenger beats the control.
		results.IsSignificant = true
		results.Winner = control
		results.Recommendation = fmt.Sprintf(
			"The control %q outperforms the challengers; consider stopping the experiment.", control)
	case exp.Status == entities.ExperimentRunning || exp.Status == entities.ExperimentPaused:
		results.Recommendation = "No statistically significant difference between variants yet; keep the experiment running."
	default:
		results.Recommendation = "No statistically significant difference was found; review the results manually before acting."
	}

	if !results.IsSignificant {
		log.Debug().
			Str("experiment", exp.Name).
			Int("min_sample_size", s.cfg.MinSampleSize).
			Msg("experiment has no significant winner")
	}

	return results, nil
}

func variantResult(name string, participants, conversions int, isControl bool) entities.VariantResult {
	vr := entities.VariantResult{
		Variant:      name,
		Participants: participants,
		Conversions:  conversions,
		IsControl:    isControl,
	}
	if participants > 0 {
		vr.ConversionRate = float64(conversions) / float64(participants)
	}
	return vr
}

func anySignificant(variants []entities.VariantResult) bool {
	for _, vr := range variants {
		if vr.IsSignificant {
			return true
		}
	}
	return false
}

// twoProportionPValue runs a two-sided two-proportion z-test with pooled
// standard error. A zero standard error yields p = 1 (no signal).
func twoProportionPValue(controlConv, controlN, variantConv, variantN int) float64 {
	if controlN == 0 || variantN == 0 {
		return 1
	}

	p1 := float64(controlConv) / float64(controlN)
	p2 := float64(variantConv) / float64(variantN)
	pooled := float64(controlConv+variantConv) / float64(controlN+variantN)

	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(controlN) + 1/float64(variantN)))
	if se == 0 {
		return 1
	}

	z := (p2 - p1) / se
	normal := distuv.Normal{Mu: 0, Sigma: 1}
	return 2 * (1 - normal.CDF(math.Abs(z)))
}

func bucketHash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}
