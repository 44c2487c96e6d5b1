package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"pharmaflow/internal/core/apperror"
)

// SQLSTATE codes the repositories translate.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// Unique constraints with a domain meaning.
const (
	ConstraintInventoryBatch = "inv_records_batch_key"
	ConstraintActiveApproval = "warehouse_approvals_active_qc_idx"
	ConstraintProductCode    = "cat_products_code_key"
	ConstraintWarehouseCode  = "cat_warehouses_code_key"
)

// MapError translates Postgres failures into application errors. Anything
// it does not recognize is returned unchanged.
func MapError(err error, entity string, entityID any) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		switch pgErr.ConstraintName {
		case ConstraintInventoryBatch:
			return apperror.NewBusinessRule(apperror.CodeDuplicateBatch,
				"batch already exists for this product in this warehouse")
		case ConstraintActiveApproval:
			return apperror.NewBusinessRule(apperror.CodeDuplicateApproval,
				"qc record already has an open warehouse approval")
		case ConstraintProductCode, ConstraintWarehouseCode:
			return apperror.NewConflict(entity + " code already exists").WithField("code", "already exists")
		}
		return apperror.NewConflict(entity + " already exists").WithDetail("constraint", pgErr.ConstraintName)
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return apperror.NewConcurrentModification(entity, entityID)
	}
	return err
}
