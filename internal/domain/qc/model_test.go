package qc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaflow/internal/core/apperror"
	"pharmaflow/internal/core/id"
	"pharmaflow/internal/core/types"
)

var now = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func items(statuses ...ItemStatus) []ItemDetail {
	out := make([]ItemDetail, len(statuses))
	for i, s := range statuses {
		out[i] = ItemDetail{ItemNumber: i + 1, Status: s, QCReasons: []string{}}
	}
	return out
}

func TestDeriveProductStatus(t *testing.T) {
	tests := []struct {
		name  string
		items []ItemDetail
		want  ProductStatus
	}{
		{"all pending", items(ItemPending, ItemPending), ProductPending},
		{"some decided", items(ItemPassed, ItemPending), ProductInProgress},
		{"all passed", items(ItemPassed, ItemPassed), ProductPassed},
		{"all failed", items(ItemFailed), ProductFailed},
		{"mixed", items(ItemPassed, ItemFailed), ProductPartialPass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveProductStatus(tt.items))
		})
	}
}

func TestDeriveOverallResult(t *testing.T) {
	p := func(s ProductStatus) Product { return Product{OverallStatus: s} }

	tests := []struct {
		name     string
		products []Product
		want     Result
	}{
		{"none", nil, ""},
		{"all passed", []Product{p(ProductPassed), p(ProductPassed)}, ResultPassed},
		{"all failed", []Product{p(ProductFailed)}, ResultFailed},
		{"passed and failed", []Product{p(ProductPassed), p(ProductFailed)}, ResultPartialPass},
		{"one partial", []Product{p(ProductPassed), p(ProductPartialPass)}, ResultPartialPass},
		{"undecided", []Product{p(ProductPassed), p(ProductInProgress)}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveOverallResult(tt.products))
		})
	}
}

func newTestRecord(itemCount int64) *Record {
	return NewRecord(TypeIncoming, []Product{{
		ProductID:   id.New(),
		ProductCode: "AMOX-250",
		BatchNumber: "LOT-1",
		ReceivedQty: itemCount,
		UnitCost:    types.MustMoney("0.80"),
		ItemDetails: GenerateItems(itemCount),
	}}, now)
}

func inspectAll(t *testing.T, r *Record, status ItemStatus) {
	t.Helper()
	for _, it := range r.Products[0].ItemDetails {
		in := ItemResult{ItemNumber: it.ItemNumber, Status: status}
		if status == ItemFailed {
			in.QCReasons = []string{"damaged seal"}
		}
		require.NoError(t, r.RecordItemResult(in, "inspector", now))
	}
}

func TestNewRecord_Defaults(t *testing.T) {
	r := newTestRecord(3)

	assert.Equal(t, StatusPending, r.Status)
	assert.Equal(t, PriorityMedium, r.Priority)
	assert.Equal(t, ProductPending, r.Products[0].OverallStatus)
	require.NoError(t, r.Validate(t.Context()))

	decided := NewRecord(TypeIncoming, []Product{{
		ProductID: id.New(), BatchNumber: "LOT-2", ReceivedQty: 2,
		ItemDetails: items(ItemPassed, ItemPending),
	}}, now)
	assert.Equal(t, StatusInProgress, decided.Status)
	assert.Equal(t, int64(1), decided.Products[0].PassedQty)
}

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Record)
		field  string
	}{
		{"bad type", func(r *Record) { r.QCType = "visual" }, "qcType"},
		{"bad priority", func(r *Record) { r.Priority = "asap" }, "priority"},
		{"no products", func(r *Record) { r.Products = nil }, "products"},
		{"no batch", func(r *Record) { r.Products[0].BatchNumber = " " }, "products[0].batchNumber"},
		{"too many items", func(r *Record) { r.Products[0].ReceivedQty = 1 }, "products[0].itemDetails"},
		{"duplicate item", func(r *Record) { r.Products[0].ItemDetails[1].ItemNumber = 1 }, "products[0].itemDetails"},
		{"negative cost", func(r *Record) { r.Products[0].UnitCost = types.MustMoney("-1") }, "products[0].unitCost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRecord(2)
			tt.mutate(r)
			err := r.Validate(t.Context())
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok, "got %v", err)
			assert.Contains(t, appErr.Fields(), tt.field)
		})
	}
}

func TestRecord_RecordItemResult(t *testing.T) {
	r := newTestRecord(2)

	err := r.RecordItemResult(ItemResult{ItemNumber: 1, Status: ItemFailed}, "inspector", now)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "failed items need reasons")

	err = r.RecordItemResult(ItemResult{ItemNumber: 9, Status: ItemPassed}, "inspector", now)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	err = r.RecordItemResult(ItemResult{ProductIndex: 1, ItemNumber: 1, Status: ItemPassed}, "inspector", now)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	require.NoError(t, r.RecordItemResult(ItemResult{ItemNumber: 1, Status: ItemPassed}, "inspector", now))
	assert.Equal(t, StatusInProgress, r.Status)
	assert.Equal(t, ProductInProgress, r.Products[0].OverallStatus)
	assert.Equal(t, "inspector", r.Products[0].ItemDetails[0].InspectedBy)
}

func TestRecord_Workflow(t *testing.T) {
	r := newTestRecord(2)

	err := r.Submit("inspector", now)
	assert.True(t, apperror.HasCode(err, apperror.CodeIncompleteInspection))

	require.NoError(t, r.RecordItemResult(ItemResult{ItemNumber: 1, Status: ItemPassed}, "inspector", now))
	require.NoError(t, r.RecordItemResult(ItemResult{ItemNumber: 2, Status: ItemFailed, QCReasons: []string{"label"}}, "inspector", now))

	err = r.Approve("", "qa", now)
	assert.True(t, apperror.HasCode(err, apperror.CodeNotSubmitted))

	require.NoError(t, r.Submit("inspector", now))
	assert.Equal(t, StatusPendingApproval, r.Status)
	assert.Equal(t, "inspector", r.QCBy)

	err = r.Submit("inspector", now)
	assert.True(t, apperror.HasCode(err, apperror.CodeAlreadySubmitted))

	err = r.RecordItemResult(ItemResult{ItemNumber: 1, Status: ItemFailed, QCReasons: []string{"x"}}, "inspector", now)
	assert.True(t, apperror.HasCode(err, apperror.CodeRecordClosed))

	require.NoError(t, r.Approve("ok", "qa", now))
	assert.Equal(t, StatusCompleted, r.Status)
	assert.Equal(t, ResultPartialPass, r.OverallResult)
	assert.Equal(t, "qa", r.ApprovedBy)

	err = r.Approve("again", "qa", now)
	assert.True(t, apperror.HasCode(err, apperror.CodeNotSubmitted))
	err = r.Submit("inspector", now)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStatusTransition))
}

func TestRecord_RejectAndReopen(t *testing.T) {
	r := newTestRecord(1)
	inspectAll(t, r, ItemFailed)
	require.NoError(t, r.Submit("inspector", now))

	err := r.Reject("  ", "qa", now)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields(), "reason")

	require.NoError(t, r.Reject("contaminated", "qa", now))
	assert.Equal(t, StatusRejected, r.Status)

	err = r.Assign("someone", nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeRecordClosed))

	require.NoError(t, r.Reopen())
	assert.Equal(t, StatusInProgress, r.Status)
	assert.Empty(t, r.QCBy)

	err = r.Reopen()
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStatusTransition))
}

func TestRecord_ApplyUpdate(t *testing.T) {
	status := func(s Status) *Status { return &s }
	remarks := "checked twice"
	supplier := "Acme Pharma"

	t.Run("pending to in_progress", func(t *testing.T) {
		r := newTestRecord(1)
		require.NoError(t, r.ApplyUpdate(UpdateInput{Status: status(StatusInProgress), SupplierName: &supplier}))
		assert.Equal(t, StatusInProgress, r.Status)
		assert.Equal(t, supplier, r.SupplierName)
	})

	t.Run("workflow statuses are refused", func(t *testing.T) {
		r := newTestRecord(1)
		err := r.ApplyUpdate(UpdateInput{Status: status(StatusCompleted)})
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStatusTransition))
	})

	t.Run("completed back to pending", func(t *testing.T) {
		r := newTestRecord(1)
		r.Status = StatusCompleted
		err := r.ApplyUpdate(UpdateInput{Status: status(StatusPending)})
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStatusTransition))
	})

	t.Run("closed record takes remarks only", func(t *testing.T) {
		r := newTestRecord(1)
		r.Status = StatusCompleted
		require.NoError(t, r.ApplyUpdate(UpdateInput{Remarks: &remarks}))
		assert.Equal(t, remarks, r.Remarks)

		err := r.ApplyUpdate(UpdateInput{SupplierName: &supplier})
		assert.True(t, apperror.HasCode(err, apperror.CodeRecordClosed))
	})
}

func TestRecord_PassedProductsAndClone(t *testing.T) {
	r := NewRecord(TypeIncoming, []Product{
		{ProductID: id.New(), BatchNumber: "A", ReceivedQty: 1, ItemDetails: items(ItemFailed)},
		{ProductID: id.New(), BatchNumber: "B", ReceivedQty: 2, ItemDetails: items(ItemPassed, ItemFailed)},
	}, now)

	passed := r.PassedProducts()
	require.Len(t, passed, 1)
	assert.Equal(t, "B", passed[0].BatchNumber)

	c := r.Clone()
	c.Products[1].ItemDetails[0].Status = ItemFailed
	assert.Equal(t, ItemPassed, r.Products[1].ItemDetails[0].Status)
}
