// Package plans implements the medical plan list flows: list, add, and
// delete guarded by the employee assignment check and a confirmation.
package plans

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

// Label names medical plans in gateway messages
const Label = "Medical plan"

const (
	MessageAssigned     = "Cannot delete plan. Plan is assigned to employees."
	MessageLoadFailed   = "Failed to load medical plans"
	MessageNotConfirmed = "Deletion was not confirmed"
	MessageSaveRunning  = "A save is already in progress"

	ConfirmTitle   = "Delete Medical Plan"
	ConfirmMessage = "Are you sure you want to delete this medical plan? This action cannot be undone."
)

// AddInput holds the fields of the add plan dialog. Active defaults to true.
type AddInput struct {
	Code            string                     `json:"code"`
	Name            string                     `json:"name"`
	CoverageSummary []entities.CoverageSummary `json:"coverageSummary"`
	Active          *bool                      `json:"active"`
}

// Service runs the plan list flows
type Service struct {
	plans gateway.Store[entities.MedicalPlanDetail]

	// codes with an add outstanding and ids with a delete outstanding;
	// a repeated submit of the same one is ignored
	adding   sync.Map
	deleting sync.Map
	newID    func() string
}

// NewService creates the plan list flows
func NewService(plans gateway.Store[entities.MedicalPlanDetail]) *Service {
	return &Service{plans: plans, newID: uuid.NewString}
}

// List returns the flat form of every plan
func (s *Service) List(ctx context.Context, notify interfaces.Notifier) ([]entities.MedicalPlan, error) {
	result, err := s.plans.List(ctx)
	if err != nil {
		notify.Error(MessageLoadFailed)
		return nil, err
	}
	if !result.OK() {
		notify.Error(result.Message)
		return nil, result.Err()
	}

	flat := make([]entities.MedicalPlan, len(result.Data))
	for i, plan := range result.Data {
		flat[i] = plan.Flat()
		if flat[i].CoverageSummary == nil {
			flat[i].CoverageSummary = []entities.CoverageSummary{}
		}
	}
	return flat, nil
}

// Add validates the input and inserts a new flat plan with a fresh id.
// Detail fields are left unset until the plan is first saved from its form.
func (s *Service) Add(ctx context.Context, notify interfaces.Notifier, in AddInput) (entities.MedicalPlan, error) {
	plan := entities.MedicalPlan{
		Code:            validation.NormalizeCode(in.Code),
		Name:            validation.NormalizeText(in.Name),
		CoverageSummary: uniqueSummary(in.CoverageSummary),
		Active:          in.Active == nil || *in.Active,
	}
	if err := validation.ValidatePlan(plan); err != nil {
		return entities.MedicalPlan{}, err
	}

	if _, busy := s.adding.LoadOrStore(plan.Code, struct{}{}); busy {
		return entities.MedicalPlan{}, apperrors.Wrap(apperrors.ErrSaveInProgress, MessageSaveRunning)
	}
	defer s.adding.Delete(plan.Code)
	plan.ID = s.newID()

	result, err := s.plans.Insert(ctx, entities.MedicalPlanDetail{
		ID:              plan.ID,
		Code:            plan.Code,
		Name:            plan.Name,
		CoverageSummary: plan.CoverageSummary,
		Active:          plan.Active,
	})
	if err != nil {
		notify.Error(apperrors.Message(err))
		return entities.MedicalPlan{}, err
	}
	if !result.OK() {
		logging.Warn("Medical plan rejected", "code", plan.Code, "reason", result.Message)
		notify.Error(result.Message)
		return entities.MedicalPlan{}, result.Err()
	}

	logging.Info("Medical plan added", "id", plan.ID, "code", plan.Code)
	notify.Success(result.Message)
	return plan, nil
}

func uniqueSummary(summary []entities.CoverageSummary) []entities.CoverageSummary {
	out := make([]entities.CoverageSummary, 0, len(summary))
	seen := make(map[entities.CoverageSummary]bool, len(summary))
	for _, s := range summary {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// IsAssignedToEmployees reads the persisted plan and reports whether its
// stored coverage configuration enables any category for employees.
// Unknown plans and plans without a stored configuration are not assigned.
func (s *Service) IsAssignedToEmployees(ctx context.Context, id string) (bool, error) {
	result, err := s.plans.List(ctx)
	if err != nil {
		return false, err
	}
	if !result.OK() {
		return false, errors.Join(apperrors.ErrStorageFailure, result.Err())
	}
	for _, plan := range result.Data {
		if plan.ID == id {
			return plan.AssignedToEmployees(), nil
		}
	}
	return false, nil
}

// Delete removes a plan that is not assigned to employees, after confirm
// approves it. The guard read and the delete are two separate gateway calls.
func (s *Service) Delete(ctx context.Context, notify interfaces.Notifier, confirm interfaces.Confirmer, id string) error {
	if _, busy := s.deleting.LoadOrStore(id, struct{}{}); busy {
		return apperrors.Wrap(apperrors.ErrSaveInProgress, MessageSaveRunning)
	}
	defer s.deleting.Delete(id)

	assigned, err := s.IsAssignedToEmployees(ctx, id)
	if err != nil {
		notify.Error(apperrors.Message(err))
		return err
	}
	if assigned {
		logging.Warn("Medical plan delete blocked", "id", id)
		notify.Error(MessageAssigned)
		return apperrors.Wrap(apperrors.ErrReferentialIntegrity, MessageAssigned)
	}

	ok, err := confirm.Confirm(ctx, interfaces.ConfirmRequest{
		Title:   ConfirmTitle,
		Message: ConfirmMessage,
		Data:    map[string]string{"id": id},
	})
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Wrap(apperrors.ErrConfirmationRequired, MessageNotConfirmed)
	}

	result, err := s.plans.Delete(ctx, id)
	if err != nil {
		notify.Error(apperrors.Message(err))
		return err
	}
	if !result.OK() {
		notify.Error(result.Message)
		return result.Err()
	}

	logging.Info("Medical plan deleted", "id", id)
	notify.Success(result.Message)
	return nil
}
