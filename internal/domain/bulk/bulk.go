// Package bulk applies one update to many records independently and
// reports the result per record.
package bulk

import (
	"context"
	"net/http"

	"pharmaflow/internal/core/apperror"
	"pharmaflow/internal/core/id"
	"pharmaflow/pkg/logger"
)

// MaxIDs bounds a single bulk request.
const MaxIDs = 500

// Target is the per-kind capability a bulk operation needs.
// ApplyUpdate runs the single-record operation, including its own locking
// and transaction.
type Target[T any, P any] interface {
	FindByID(ctx context.Context, recordID id.ID) (T, error)
	ApplyUpdate(ctx context.Context, record T, payload P) (T, error)
}

// ItemError is the failure of one id.
type ItemError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ItemResult is the outcome for one id.
type ItemResult struct {
	ID      string     `json:"id"`
	Success bool       `json:"success"`
	Error   *ItemError `json:"error,omitempty"`
}

// Result aggregates a bulk run.
type Result struct {
	Updated int          `json:"updated"`
	Failed  int          `json:"failed"`
	Results []ItemResult `json:"results"`
}

// Outcome classifies a result.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomePartial Outcome = "partial"
)

// Outcome reports success, failure or partial.
func (r Result) Outcome() Outcome {
	switch {
	case r.Failed == 0:
		return OutcomeSuccess
	case r.Updated == 0:
		return OutcomeFailure
	default:
		return OutcomePartial
	}
}

// HTTPStatus maps the outcome: 200, 400, or 207 for mixed results.
func (r Result) HTTPStatus() int {
	switch r.Outcome() {
	case OutcomeSuccess:
		return http.StatusOK
	case OutcomeFailure:
		return http.StatusBadRequest
	default:
		return http.StatusMultiStatus
	}
}

// Run applies payload to every id. It fails as a whole only when ids is
// empty or too long; everything else is reported per id.
func Run[T any, P any](ctx context.Context, target Target[T, P], ids []string, payload P) (Result, error) {
	if len(ids) == 0 {
		return Result{}, apperror.NewBusinessRule(apperror.CodeEmptyIDList, "ids must not be empty").
			WithField("ids", "must not be empty")
	}
	if len(ids) > MaxIDs {
		return Result{}, apperror.NewFieldError("ids", "must contain at most 500 entries")
	}

	res := Result{Results: make([]ItemResult, 0, len(ids))}
	for _, raw := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if err := apply(ctx, target, raw, payload); err != nil {
			if !apperror.IsAppError(err) || apperror.HasCode(err, apperror.CodeInternal) {
				logger.Error(ctx, "bulk item failed", "id", raw, "error", err)
			}
			res.Failed++
			res.Results = append(res.Results, ItemResult{ID: raw, Success: false, Error: toItemError(err)})
			continue
		}
		res.Updated++
		res.Results = append(res.Results, ItemResult{ID: raw, Success: true})
	}

	logger.Info(ctx, "bulk operation finished", "updated", res.Updated, "failed", res.Failed)
	return res, nil
}

func apply[T any, P any](ctx context.Context, target Target[T, P], raw string, payload P) error {
	recordID, err := id.Parse(raw)
	if err != nil {
		return apperror.NewFieldError("id", "is not a valid identifier")
	}
	record, err := target.FindByID(ctx, recordID)
	if err != nil {
		return err
	}
	_, err = target.ApplyUpdate(ctx, record, payload)
	return err
}

func toItemError(err error) *ItemError {
	if appErr, ok := apperror.AsAppError(err); ok {
		return &ItemError{Code: appErr.Code, Message: appErr.Message}
	}
	return &ItemError{Code: apperror.CodeInternal, Message: "Internal server error"}
}
