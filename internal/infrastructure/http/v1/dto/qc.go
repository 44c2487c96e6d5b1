package dto

import (
	"time"

	"pharmaflow/internal/core/types"
	"pharmaflow/internal/domain/qc"
)

// QCListQuery filters GET /qc.
type QCListQuery struct {
	ListQuery
	Status     string `form:"status"`
	QCType     string `form:"qcType"`
	Priority   string `form:"priority"`
	AssignedTo string `form:"assignedTo"`
}

// Filter builds the repository filter.
func (q QCListQuery) Filter() qc.ListFilter {
	f := qc.ListFilter{ListFilter: q.ListQuery.Filter(), AssignedTo: q.AssignedTo}
	if q.Status != "" {
		s := qc.Status(q.Status)
		f.Status = &s
	}
	if q.QCType != "" {
		t := qc.Type(q.QCType)
		f.QCType = &t
	}
	if q.Priority != "" {
		p := qc.Priority(q.Priority)
		f.Priority = &p
	}
	return f
}

type QCItemRequest struct {
	ItemNumber int      `json:"itemNumber" binding:"required,min=1"`
	Status     string   `json:"status"`
	QCReasons  []string `json:"qcReasons"`
	Remarks    string   `json:"remarks"`
}

type QCProductRequest struct {
	ProductCode     string          `json:"productCode" binding:"required"`
	BatchNumber     string          `json:"batchNumber" binding:"required"`
	ManufactureDate *time.Time      `json:"manufactureDate"`
	ExpiryDate      *time.Time      `json:"expiryDate"`
	ReceivedQty     int64           `json:"receivedQty" binding:"required,min=1,max=10000"`
	UnitCost        types.Money     `json:"unitCost"`
	ItemDetails     []QCItemRequest `json:"itemDetails" binding:"omitempty,dive"`
}

// CreateQCRequest is the body of POST /qc.
type CreateQCRequest struct {
	QCType           string             `json:"qcType" binding:"required"`
	Priority         string             `json:"priority"`
	ReceivingRef     string             `json:"receivingRef"`
	PurchaseOrderRef string             `json:"purchaseOrderRef"`
	SupplierName     string             `json:"supplierName"`
	AssignedTo       string             `json:"assignedTo"`
	Remarks          string             `json:"remarks"`
	Products         []QCProductRequest `json:"products" binding:"required,min=1,dive"`
}

func (r CreateQCRequest) ToInput() qc.CreateInput {
	in := qc.CreateInput{
		QCType:           qc.Type(r.QCType),
		Priority:         qc.Priority(r.Priority),
		ReceivingRef:     r.ReceivingRef,
		PurchaseOrderRef: r.PurchaseOrderRef,
		SupplierName:     r.SupplierName,
		AssignedTo:       r.AssignedTo,
		Remarks:          r.Remarks,
		Products:         make([]qc.ProductInput, 0, len(r.Products)),
	}
	for _, p := range r.Products {
		pi := qc.ProductInput{
			ProductCode:     p.ProductCode,
			BatchNumber:     p.BatchNumber,
			ManufactureDate: p.ManufactureDate,
			ExpiryDate:      p.ExpiryDate,
			ReceivedQty:     p.ReceivedQty,
			UnitCost:        p.UnitCost,
		}
		for _, it := range p.ItemDetails {
			pi.ItemDetails = append(pi.ItemDetails, qc.ItemInput{
				ItemNumber: it.ItemNumber,
				Status:     qc.ItemStatus(it.Status),
				QCReasons:  it.QCReasons,
				Remarks:    it.Remarks,
			})
		}
		in.Products = append(in.Products, pi)
	}
	return in
}

// ItemResultRequest is the body of POST /qc/:id/items.
type ItemResultRequest struct {
	ProductIndex *int     `json:"productIndex" binding:"required,min=0"`
	ItemNumber   int      `json:"itemNumber" binding:"required,min=1"`
	Status       string   `json:"status" binding:"required,oneof=pending passed failed"`
	QCReasons    []string `json:"qcReasons"`
	Remarks      string   `json:"remarks"`
}

func (r ItemResultRequest) ToInput() qc.ItemResult {
	return qc.ItemResult{
		ProductIndex: *r.ProductIndex,
		ItemNumber:   r.ItemNumber,
		Status:       qc.ItemStatus(r.Status),
		QCReasons:    r.QCReasons,
		Remarks:      r.Remarks,
	}
}

// QCBulkAssignRequest is the body of POST /qc/bulk-assign.
type QCBulkAssignRequest struct {
	BulkRequest
	AssignedTo string  `json:"assignedTo" binding:"required"`
	Priority   *string `json:"priority"`
}

func (r QCBulkAssignRequest) ToInput() qc.AssignInput {
	in := qc.AssignInput{AssignedTo: r.AssignedTo}
	if r.Priority != nil {
		p := qc.Priority(*r.Priority)
		in.Priority = &p
	}
	return in
}
