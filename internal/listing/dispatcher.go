package listing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
)

// Mutation action names.
const (
	ActionCreate     = "create"
	ActionUpdate     = "update"
	ActionDelete     = "delete"
	ActionDeleteMany = "delete_many"
)

// ErrNotConfirmed is returned when a destructive operation is requested
// without the confirmation step.
var ErrNotConfirmed = domain.NewValidationError("Please confirm the deletion first.")

// ErrEmptySelection is returned by DeleteMany when nothing is selected.
var ErrEmptySelection = domain.NewValidationError("No records selected.")

// ErrCreateUnsupported is returned by Create when the mutator cannot create records.
var ErrCreateUnsupported = domain.NewAppError(domain.CodeInternal, "create is not supported", nil)

// ErrUnsupported is returned by ReadOnly for every mutation.
var ErrUnsupported = domain.NewAppError(domain.CodeInternal, "operation is not supported", nil)

// ReadOnly is a Mutator for views whose records change only through
// Dispatcher.Do.
type ReadOnly[T any, ID comparable] struct{}

func (ReadOnly[T, ID]) Update(context.Context, T) error        { return ErrUnsupported }
func (ReadOnly[T, ID]) Delete(context.Context, ID) error       { return ErrUnsupported }
func (ReadOnly[T, ID]) DeleteMany(context.Context, []ID) error { return ErrUnsupported }

// NoticeKind classifies a Notice.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is the user-facing result of a mutation.
type Notice struct {
	Kind    NoticeKind
	Message string
}

// OK reports whether the notice reports success.
func (n Notice) OK() bool { return n.Kind == NoticeSuccess }

// Messages holds the notices shown per operation. Failure messages are used
// only when the backend did not supply one.
type Messages struct {
	CreateOK       string
	CreateFail     string
	UpdateOK       string
	UpdateFail     string
	DeleteOK       string
	DeleteFail     string
	DeleteManyOK   string
	DeleteManyFail string
}

func (m Messages) withDefaults() Messages {
	def := func(s *string, v string) {
		if *s == "" {
			*s = v
		}
	}
	def(&m.CreateOK, "Created successfully.")
	def(&m.CreateFail, "Failed to create.")
	def(&m.UpdateOK, "Updated successfully.")
	def(&m.UpdateFail, "Failed to update.")
	def(&m.DeleteOK, "Deleted successfully.")
	def(&m.DeleteFail, "Failed to delete.")
	def(&m.DeleteManyOK, "Deleted successfully.")
	def(&m.DeleteManyFail, "Failed to delete.")
	return m
}

// Outcome describes one completed mutation.
type Outcome struct {
	Resource string
	Action   string
	IDs      []string
	Success  bool
	Message  string
	Err      error
}

// MutationHook observes every mutation outcome.
type MutationHook func(ctx context.Context, o Outcome)

// Dispatcher issues mutations for one list view. State changes only after
// the backend confirms success.
type Dispatcher[T Record[ID], ID comparable] struct {
	resource string
	ctrl     *Controller[T, ID]
	mutator  Mutator[T, ID]
	msgs     Messages
	hook     MutationHook
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher that mutates through m and refreshes ctrl.
func NewDispatcher[T Record[ID], ID comparable](resource string, ctrl *Controller[T, ID], m Mutator[T, ID], msgs Messages, hook MutationHook) *Dispatcher[T, ID] {
	if ctrl == nil {
		panic("listing.NewDispatcher: controller must not be nil")
	}
	if m == nil {
		panic("listing.NewDispatcher: mutator must not be nil")
	}
	return &Dispatcher[T, ID]{
		resource: resource,
		ctrl:     ctrl,
		mutator:  m,
		msgs:     msgs.withDefaults(),
		hook:     hook,
		logger:   ctrl.logger,
	}
}

// Create creates rec and re-fetches the current page.
func (d *Dispatcher[T, ID]) Create(ctx context.Context, rec T) (Notice, error) {
	creator, ok := d.mutator.(Creator[T])
	if !ok {
		return d.finish(ctx, ActionCreate, nil, ErrCreateUnsupported, d.msgs.CreateOK, d.msgs.CreateFail)
	}
	err := creator.Create(ctx, rec)
	if err == nil {
		d.refetch(ctx)
	}
	return d.finish(ctx, ActionCreate, nil, err, d.msgs.CreateOK, d.msgs.CreateFail)
}

// Update saves rec and re-fetches the current page.
func (d *Dispatcher[T, ID]) Update(ctx context.Context, rec T) (Notice, error) {
	err := d.mutator.Update(ctx, rec)
	if err == nil {
		d.refetch(ctx)
	}
	return d.finish(ctx, ActionUpdate, []ID{rec.RecordID()}, err, d.msgs.UpdateOK, d.msgs.UpdateFail)
}

// DeleteOne deletes id once confirmed, prunes it from the selection and
// re-fetches the current page.
func (d *Dispatcher[T, ID]) DeleteOne(ctx context.Context, id ID, confirmed bool) (Notice, error) {
	if !confirmed {
		return d.finish(ctx, ActionDelete, []ID{id}, ErrNotConfirmed, d.msgs.DeleteOK, d.msgs.DeleteFail)
	}
	err := d.mutator.Delete(ctx, id)
	if err == nil {
		d.ctrl.pruneSelection([]ID{id})
		d.refetch(ctx)
	}
	return d.finish(ctx, ActionDelete, []ID{id}, err, d.msgs.DeleteOK, d.msgs.DeleteFail)
}

// DeleteMany deletes every selected id in one request once confirmed. On
// success the deleted ids leave the selection and the current page is
// re-fetched; on failure nothing changes locally.
func (d *Dispatcher[T, ID]) DeleteMany(ctx context.Context, confirmed bool) (Notice, error) {
	ids := d.ctrl.SelectedIDs()
	if len(ids) == 0 {
		return d.finish(ctx, ActionDeleteMany, nil, ErrEmptySelection, d.msgs.DeleteManyOK, d.msgs.DeleteManyFail)
	}
	if !confirmed {
		return d.finish(ctx, ActionDeleteMany, ids, ErrNotConfirmed, d.msgs.DeleteManyOK, d.msgs.DeleteManyFail)
	}
	err := d.mutator.DeleteMany(ctx, ids)
	if err == nil {
		d.ctrl.pruneSelection(ids)
		d.refetch(ctx)
	}
	return d.finish(ctx, ActionDeleteMany, ids, err, d.msgs.DeleteManyOK, d.msgs.DeleteManyFail)
}

// Do runs a resource-specific mutation such as approving a listing. On
// success the given ids leave the view: they are pruned from the selection
// and the current page is re-fetched.
func (d *Dispatcher[T, ID]) Do(ctx context.Context, action string, ids []ID, fn func(ctx context.Context) error, okMsg, failMsg string) (Notice, error) {
	err := fn(ctx)
	if err == nil {
		d.ctrl.pruneSelection(ids)
		d.refetch(ctx)
	}
	return d.finish(ctx, action, ids, err, okMsg, failMsg)
}

// DoEach runs fn once per id, in order, for backends without a bulk
// endpoint. The batch stops at the first failure, which is reported; ids
// already handled are pruned from the selection and the page re-fetched
// either way.
func (d *Dispatcher[T, ID]) DoEach(ctx context.Context, action string, ids []ID, fn func(ctx context.Context, id ID) error, okMsg, failMsg string) (Notice, error) {
	if len(ids) == 0 {
		return d.finish(ctx, action, nil, ErrEmptySelection, okMsg, failMsg)
	}

	var err error
	done := make([]ID, 0, len(ids))
	for _, id := range ids {
		if err = fn(ctx, id); err != nil {
			break
		}
		done = append(done, id)
	}
	if len(done) > 0 {
		d.ctrl.pruneSelection(done)
		d.refetch(ctx)
	}
	if err != nil && len(done) > 0 {
		d.logger.WarnContext(ctx, "batch stopped early",
			slog.String("view", d.resource),
			slog.String("action", action),
			slog.Int("done", len(done)),
			slog.Int("total", len(ids)),
		)
	}
	attempted := done
	if err != nil {
		attempted = ids[:len(done)+1]
	}
	return d.finish(ctx, action, attempted, err, okMsg, failMsg)
}

// Controller returns the controller refreshed by d.
func (d *Dispatcher[T, ID]) Controller() *Controller[T, ID] {
	return d.ctrl
}

func (d *Dispatcher[T, ID]) refetch(ctx context.Context) {
	if _, err := d.ctrl.Refetch(ctx); err != nil && !errors.Is(err, ErrStale) {
		// The mutation itself succeeded; the view carries the fetch error.
		d.logger.WarnContext(ctx, "re-fetch after mutation failed",
			slog.String("view", d.resource),
			slog.Any("error", err),
		)
	}
}

func (d *Dispatcher[T, ID]) finish(ctx context.Context, action string, ids []ID, err error, okMsg, failMsg string) (Notice, error) {
	n := Notice{Kind: NoticeSuccess, Message: okMsg}
	if err != nil {
		n = Notice{Kind: NoticeError, Message: domain.UserMessage(err, failMsg)}
		d.logger.WarnContext(ctx, "mutation failed",
			slog.String("view", d.resource),
			slog.String("action", action),
			slog.Any("error", err),
		)
	} else {
		d.logger.InfoContext(ctx, "mutation succeeded",
			slog.String("view", d.resource),
			slog.String("action", action),
			slog.Int("count", len(ids)),
		)
	}

	if d.hook != nil && issued(err) {
		strIDs := make([]string, len(ids))
		for i, id := range ids {
			strIDs[i] = fmt.Sprint(id)
		}
		d.hook(ctx, Outcome{
			Resource: d.resource,
			Action:   action,
			IDs:      strIDs,
			Success:  err == nil,
			Message:  n.Message,
			Err:      err,
		})
	}
	return n, err
}

// issued reports whether err came from a request that reached the backend,
// as opposed to a local check that stopped it.
func issued(err error) bool {
	return !errors.Is(err, ErrNotConfirmed) &&
		!errors.Is(err, ErrEmptySelection) &&
		!errors.Is(err, ErrCreateUnsupported) &&
		!errors.Is(err, ErrUnsupported)
}
