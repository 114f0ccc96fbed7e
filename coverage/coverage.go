// Package coverage implements the coverage code flows: add, list, edit with
// structural dirty tracking, and delete guarded by plan references.
package coverage

import (
	"context"
	"errors"
	"sync"

	"github.com/giygas/benefits-api/apperrors"
	"github.com/giygas/benefits-api/entities"
	"github.com/giygas/benefits-api/gateway"
	"github.com/giygas/benefits-api/interfaces"
	"github.com/giygas/benefits-api/logging"
	"github.com/giygas/benefits-api/validation"
	"github.com/google/uuid"
)

// Label names coverage codes in gateway messages
const Label = "Coverage code"

const (
	MessageInUse       = "Cannot delete coverage code. It is used by one or more medical plans."
	MessageLoadFailed  = "Failed to load coverage codes"
	MessageNotFound    = "Coverage code not found"
	MessageSaveRunning = "A save is already in progress"
	MessageUnchanged   = "No changes to save"
)

// Input holds the user-entered fields of a coverage code
type Input struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
}

func (in Input) normalize() Input {
	return Input{
		Code:        validation.NormalizeCode(in.Code),
		Description: validation.NormalizeText(in.Description),
		Active:      in.Active,
	}
}

// Service runs the coverage code flows over the two collections
type Service struct {
	codes gateway.Store[entities.CoverageCode]
	plans gateway.Store[entities.MedicalPlanDetail]

	// ids with an edit or delete outstanding; a repeated submit is ignored
	editing  sync.Map
	deleting sync.Map
	newID    func() string
}

// NewService creates the coverage code flows
func NewService(codes gateway.Store[entities.CoverageCode], plans gateway.Store[entities.MedicalPlanDetail]) *Service {
	return &Service{
		codes: codes,
		plans: plans,
		newID: uuid.NewString,
	}
}

// List returns every coverage code
func (s *Service) List(ctx context.Context, notify interfaces.Notifier) ([]entities.CoverageCode, error) {
	result, err := s.codes.List(ctx)
	if err != nil {
		notify.Error(MessageLoadFailed)
		return nil, err
	}
	if !result.OK() {
		notify.Error(result.Message)
		return nil, result.Err()
	}
	return result.Data, nil
}

// ListActive returns the codes that can be picked for a rate row
func (s *Service) ListActive(ctx context.Context, notify interfaces.Notifier) ([]entities.CoverageCode, error) {
	codes, err := s.List(ctx, notify)
	if err != nil {
		return nil, err
	}
	active := make([]entities.CoverageCode, 0, len(codes))
	for _, code := range codes {
		if code.Active {
			active = append(active, code)
		}
	}
	return active, nil
}

// Get returns the coverage code with id
func (s *Service) Get(ctx context.Context, notify interfaces.Notifier, id string) (entities.CoverageCode, error) {
	codes, err := s.List(ctx, notify)
	if err != nil {
		return entities.CoverageCode{}, err
	}
	for _, code := range codes {
		if code.ID == id {
			return code, nil
		}
	}
	notify.Error(MessageNotFound)
	return entities.CoverageCode{}, apperrors.Wrap(apperrors.ErrNotFound, MessageNotFound)
}

// Add validates the input and inserts a new coverage code with a fresh id
func (s *Service) Add(ctx context.Context, notify interfaces.Notifier, in Input) (entities.CoverageCode, error) {
	in = in.normalize()
	code := entities.CoverageCode{
		Code:        in.Code,
		Description: in.Description,
		Active:      in.Active,
	}
	if err := validation.ValidateCoverageCode(code); err != nil {
		return entities.CoverageCode{}, err
	}
	code.ID = s.newID()

	result, err := s.codes.Insert(ctx, code)
	if err != nil {
		notify.Error(apperrors.Message(err))
		return entities.CoverageCode{}, err
	}
	if !result.OK() {
		logging.Warn("Coverage code rejected", "code", code.Code, "reason", result.Message)
		notify.Error(result.Message)
		return entities.CoverageCode{}, result.Err()
	}

	logging.Info("Coverage code added", "id", code.ID, "code", code.Code)
	notify.Success(result.Message)
	return code, nil
}

// Delete removes a coverage code unless a plan's rate list references it.
// The guard read and the delete are two separate gateway calls.
func (s *Service) Delete(ctx context.Context, notify interfaces.Notifier, id string) error {
	if _, busy := s.deleting.LoadOrStore(id, struct{}{}); busy {
		return apperrors.Wrap(apperrors.ErrSaveInProgress, MessageSaveRunning)
	}
	defer s.deleting.Delete(id)

	used, err := s.isUsed(ctx, id)
	if err != nil {
		notify.Error(apperrors.Message(err))
		return err
	}
	if used {
		logging.Warn("Coverage code delete blocked", "id", id)
		notify.Error(MessageInUse)
		return apperrors.Wrap(apperrors.ErrReferentialIntegrity, MessageInUse)
	}

	result, err := s.codes.Delete(ctx, id)
	if err != nil {
		notify.Error(apperrors.Message(err))
		return err
	}
	if !result.OK() {
		notify.Error(result.Message)
		return result.Err()
	}

	logging.Info("Coverage code deleted", "id", id)
	notify.Success(result.Message)
	return nil
}

// isUsed reports whether any persisted plan has a rate row for the code
func (s *Service) isUsed(ctx context.Context, id string) (bool, error) {
	result, err := s.plans.List(ctx)
	if err != nil {
		return false, err
	}
	if !result.OK() {
		return false, errors.Join(apperrors.ErrStorageFailure, result.Err())
	}
	for _, plan := range result.Data {
		if plan.ReferencesCoverageCode(id) {
			return true, nil
		}
	}
	return false, nil
}

// Labels maps coverage code ids to their "code - description" label
func Labels(codes []entities.CoverageCode) map[string]string {
	labels := make(map[string]string, len(codes))
	for _, code := range codes {
		labels[code.ID] = code.Label()
	}
	return labels
}
