package bulk

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaflow/internal/core/apperror"
	"pharmaflow/internal/core/id"
)

type record struct {
	id       id.ID
	assignee string
	closed   bool
}

// fakeTarget keeps records in a map and refuses closed ones.
type fakeTarget struct {
	records map[id.ID]*record
}

func (f *fakeTarget) FindByID(_ context.Context, recordID id.ID) (*record, error) {
	r, ok := f.records[recordID]
	if !ok {
		return nil, apperror.NewNotFound("record", recordID)
	}
	return r, nil
}

func (f *fakeTarget) ApplyUpdate(_ context.Context, r *record, assignee string) (*record, error) {
	if r.closed {
		return nil, apperror.NewBusinessRule(apperror.CodeRecordClosed, "record is closed")
	}
	r.assignee = assignee
	return r, nil
}

func newTarget(recs ...*record) *fakeTarget {
	f := &fakeTarget{records: map[id.ID]*record{}}
	for _, r := range recs {
		f.records[r.id] = r
	}
	return f
}

func TestRun_MixedResultIsMultiStatus(t *testing.T) {
	a, b := &record{id: id.New()}, &record{id: id.New()}
	target := newTarget(a, b)

	res, err := Run[*record, string](context.Background(), target,
		[]string{a.id.String(), b.id.String(), id.New().String()}, "inspector-7")
	require.NoError(t, err)

	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, res.Results, 3)
	assert.False(t, res.Results[2].Success)
	assert.Equal(t, apperror.CodeNotFound, res.Results[2].Error.Code)
	assert.Equal(t, OutcomePartial, res.Outcome())
	assert.Equal(t, http.StatusMultiStatus, res.HTTPStatus())
	assert.Equal(t, "inspector-7", a.assignee)
}

func TestRun_PerIDFailures(t *testing.T) {
	closed := &record{id: id.New(), closed: true}
	target := newTarget(closed)

	res, err := Run[*record, string](context.Background(), target,
		[]string{"not-a-uuid", closed.id.String()}, "x")
	require.NoError(t, err)

	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, apperror.CodeValidation, res.Results[0].Error.Code)
	assert.Equal(t, apperror.CodeRecordClosed, res.Results[1].Error.Code)
	assert.Equal(t, http.StatusBadRequest, res.HTTPStatus())
}

func TestRun_AllSucceeded(t *testing.T) {
	a := &record{id: id.New()}
	res, err := Run[*record, string](context.Background(), newTarget(a), []string{a.id.String()}, "x")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome())
	assert.Equal(t, http.StatusOK, res.HTTPStatus())
}

func TestRun_EmptyIDList(t *testing.T) {
	_, err := Run[*record, string](context.Background(), newTarget(), nil, "x")
	assert.True(t, apperror.HasCode(err, apperror.CodeEmptyIDList))
	assert.Equal(t, http.StatusBadRequest, apperror.GetHTTPStatus(err))
}

type brokenTarget struct{}

func (brokenTarget) FindByID(context.Context, id.ID) (*record, error) {
	return nil, errors.New("connection refused")
}

func (brokenTarget) ApplyUpdate(_ context.Context, r *record, _ string) (*record, error) {
	return r, nil
}

func TestRun_HidesInfrastructureErrors(t *testing.T) {
	res, err := Run[*record, string](context.Background(), brokenTarget{}, []string{id.New().String()}, "x")
	require.NoError(t, err)
	assert.Equal(t, apperror.CodeInternal, res.Results[0].Error.Code)
	assert.NotContains(t, res.Results[0].Error.Message, "connection refused")
}
