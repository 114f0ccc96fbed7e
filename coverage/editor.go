package coverage

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/giygas/benefits-api/apperrors"
	"github.com/giygas/benefits-api/entities"
	"github.com/giygas/benefits-api/interfaces"
	"github.com/giygas/benefits-api/logging"
	"github.com/giygas/benefits-api/validation"
	"github.com/google/go-cmp/cmp"
)

// Editor is the working copy of one coverage code being edited.
// Dirty compares values with the loaded record, so patching a field back to
// its original value leaves the editor clean.
type Editor struct {
	service *Service

	mu       sync.Mutex
	original entities.CoverageCode
	current  Input
	saving   atomic.Bool
}

// OpenEditor loads the coverage code with id into a clean editor
func (s *Service) OpenEditor(ctx context.Context, notify interfaces.Notifier, id string) (*Editor, error) {
	code, err := s.Get(ctx, notify, id)
	if err != nil {
		return nil, err
	}
	return &Editor{service: s, original: code, current: inputOf(code)}, nil
}

func inputOf(code entities.CoverageCode) Input {
	return Input{Code: code.Code, Description: code.Description, Active: code.Active}
}

// Patch replaces the working values; the code is upper-cased as typed
func (e *Editor) Patch(in Input) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = in.normalize()
}

// Values returns the working values
func (e *Editor) Values() Input {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Dirty reports whether the working values differ from the loaded record
func (e *Editor) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !cmp.Equal(e.current, inputOf(e.original))
}

// Saving reports whether a save is outstanding
func (e *Editor) Saving() bool {
	return e.saving.Load()
}

// Save writes the working values when they differ from the loaded record.
// It reports whether a write happened; a clean editor performs none.
func (e *Editor) Save(ctx context.Context, notify interfaces.Notifier) (entities.CoverageCode, bool, error) {
	if !e.saving.CompareAndSwap(false, true) {
		return entities.CoverageCode{}, false, apperrors.Wrap(apperrors.ErrSaveInProgress, MessageSaveRunning)
	}
	defer e.saving.Store(false)

	e.mu.Lock()
	original, current := e.original, e.current
	e.mu.Unlock()

	if cmp.Equal(current, inputOf(original)) {
		return original, false, nil
	}

	updated := entities.CoverageCode{
		ID:          original.ID,
		Code:        current.Code,
		Description: current.Description,
		Active:      current.Active,
	}
	if err := validation.ValidateCoverageCode(updated); err != nil {
		return entities.CoverageCode{}, false, err
	}

	result, err := e.service.codes.Update(ctx, original.ID, updated)
	if err != nil {
		notify.Error(apperrors.Message(err))
		return entities.CoverageCode{}, false, err
	}
	if !result.OK() {
		logging.Warn("Coverage code update rejected", "id", original.ID, "reason", result.Message)
		notify.Error(result.Message)
		return entities.CoverageCode{}, false, result.Err()
	}

	e.mu.Lock()
	e.original = updated
	e.mu.Unlock()

	logging.Info("Coverage code updated", "id", updated.ID, "code", updated.Code)
	notify.Success(result.Message)
	return updated, true, nil
}

// Edit loads the coverage code, applies in and saves it when it changed.
// Each call opens its own editor, so concurrent edits are guarded per id.
func (s *Service) Edit(ctx context.Context, notify interfaces.Notifier, id string, in Input) (entities.CoverageCode, bool, error) {
	if _, busy := s.editing.LoadOrStore(id, struct{}{}); busy {
		return entities.CoverageCode{}, false, apperrors.Wrap(apperrors.ErrSaveInProgress, MessageSaveRunning)
	}
	defer s.editing.Delete(id)

	editor, err := s.OpenEditor(ctx, notify, id)
	if err != nil {
		return entities.CoverageCode{}, false, err
	}
	editor.Patch(in)
	return editor.Save(ctx, notify)
}
