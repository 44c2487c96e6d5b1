package approval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaflow/internal/core/apperror"
	"pharmaflow/internal/core/id"
	"pharmaflow/internal/domain/qc"
)

var now = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func completedQC(t *testing.T, statuses ...qc.ItemStatus) *qc.Record {
	t.Helper()
	items := make([]qc.ItemDetail, len(statuses))
	for i, s := range statuses {
		items[i] = qc.ItemDetail{ItemNumber: i + 1, Status: s, QCReasons: []string{}}
	}
	rec := qc.NewRecord(qc.TypeIncoming, []qc.Product{{
		ProductID:   id.New(),
		ProductCode: "AMOX-250",
		BatchNumber: "LOT-1",
		ReceivedQty: int64(len(statuses)),
		ItemDetails: items,
	}}, now)
	rec.QCNumber = "QC-2026-00001"
	require.NoError(t, rec.Submit("inspector", now))
	require.NoError(t, rec.Approve("", "qa", now))
	return rec
}

func TestNewFromQC(t *testing.T) {
	src := completedQC(t, qc.ItemPassed, qc.ItemFailed, qc.ItemPassed)
	wh := id.New()

	rec, err := NewFromQC(src, wh, now)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, src.ID, rec.QCRecordID)
	assert.Equal(t, "QC-2026-00001", rec.QCNumber)
	require.Len(t, rec.Products, 1)
	assert.Equal(t, int64(2), rec.Products[0].ApprovedQty)
	require.Len(t, rec.Products[0].Items, 2)
	assert.Equal(t, 1, rec.Products[0].Items[0].ItemNumber)
	assert.Equal(t, 3, rec.Products[0].Items[1].ItemNumber)
}

func TestNewFromQC_RequiresPassingApproval(t *testing.T) {
	failed := completedQC(t, qc.ItemFailed)
	_, err := NewFromQC(failed, id.New(), now)
	assert.True(t, apperror.HasCode(err, apperror.CodeQCNotApproved))

	open := qc.NewRecord(qc.TypeIncoming, []qc.Product{{
		ProductID: id.New(), BatchNumber: "L", ReceivedQty: 1, ItemDetails: qc.GenerateItems(1),
	}}, now)
	_, err = NewFromQC(open, id.New(), now)
	assert.True(t, apperror.HasCode(err, apperror.CodeQCNotApproved))
}

func TestRecord_AssignStorage(t *testing.T) {
	rec, err := NewFromQC(completedQC(t, qc.ItemPassed, qc.ItemPassed, qc.ItemPassed), id.New(), now)
	require.NoError(t, err)

	err = rec.AssignStorage(StorageInput{StorageLocation: " "}, "keeper", now)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	missing := 7
	err = rec.AssignStorage(StorageInput{ItemNumber: &missing, StorageLocation: "A-1"}, "keeper", now)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	first := 1
	require.NoError(t, rec.AssignStorage(StorageInput{ItemNumber: &first, StorageLocation: "A-1"}, "keeper", now))
	assert.Equal(t, StatusInProgress, rec.Status)
	assert.Equal(t, int64(1), rec.Products[0].StoredQty)

	err = rec.Submit("keeper", now)
	assert.True(t, apperror.HasCode(err, apperror.CodeIncompleteStorageInfo))

	require.NoError(t, rec.AssignStorage(StorageInput{StorageLocation: "B-2"}, "keeper", now))
	assert.Equal(t, int64(3), rec.Products[0].StoredQty)
	assert.Equal(t, "A-1", rec.Products[0].Items[0].StorageLocation, "product-level assignment keeps placed items")
	assert.Equal(t, "B-2", rec.Products[0].Items[2].StorageLocation)
	assert.Equal(t, "B-2", rec.Products[0].Location())
}

func TestRecord_Workflow(t *testing.T) {
	rec, err := NewFromQC(completedQC(t, qc.ItemPassed), id.New(), now)
	require.NoError(t, err)

	err = rec.Approve("", "manager", now)
	assert.True(t, apperror.HasCode(err, apperror.CodeNotSubmitted))

	require.NoError(t, rec.AssignStorage(StorageInput{StorageLocation: "A-1"}, "keeper", now))
	require.NoError(t, rec.Submit("keeper", now))
	assert.Equal(t, StatusSubmitted, rec.Status)

	err = rec.AssignStorage(StorageInput{StorageLocation: "A-2"}, "keeper", now)
	assert.True(t, apperror.HasCode(err, apperror.CodeRecordClosed))

	err = rec.Submit("keeper", now)
	assert.True(t, apperror.HasCode(err, apperror.CodeAlreadySubmitted))

	require.NoError(t, rec.Approve("fine", "manager", now))
	assert.Equal(t, StatusApproved, rec.Status)
	assert.False(t, rec.InventoryCreated)

	err = rec.Approve("again", "manager", now)
	assert.True(t, apperror.HasCode(err, apperror.CodeNotSubmitted))

	back := StatusPending
	err = rec.ApplyUpdate(UpdateInput{Status: &back})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStatusTransition))
}

func TestRecord_Reject(t *testing.T) {
	rec, err := NewFromQC(completedQC(t, qc.ItemPassed), id.New(), now)
	require.NoError(t, err)
	require.NoError(t, rec.AssignStorage(StorageInput{StorageLocation: "A-1"}, "keeper", now))
	require.NoError(t, rec.Submit("keeper", now))

	err = rec.Reject("", "manager", now)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields(), "reason")

	require.NoError(t, rec.Reject("wrong shelf", "manager", now))
	assert.Equal(t, StatusRejected, rec.Status)
	assert.Equal(t, "wrong shelf", rec.RejectionReason)
}

func TestRecord_ApplyUpdateImmutable(t *testing.T) {
	rec, err := NewFromQC(completedQC(t, qc.ItemPassed), id.New(), now)
	require.NoError(t, err)
	other := id.New()

	err = rec.ApplyUpdate(UpdateInput{WarehouseID: &other})
	assert.True(t, apperror.HasCode(err, apperror.CodeImmutableField))

	err = rec.ApplyUpdate(UpdateInput{QCRecordID: &other})
	assert.True(t, apperror.HasCode(err, apperror.CodeImmutableField))

	same := rec.WarehouseID
	assignee := "keeper-2"
	require.NoError(t, rec.ApplyUpdate(UpdateInput{WarehouseID: &same, AssignedTo: &assignee}))
	assert.Equal(t, "keeper-2", rec.AssignedTo)
}
