package utils

import (
	"errors"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

// Error taxonomy for the amount-calculation engine.
//
// - ErrorRecordNotFound: a referenced document/item/tax rate does not exist.
//   Recompute aborts; the previously persisted amounts row stays untouched.
// - ErrorValidationFailed: malformed item/discount/tax input. The caller must
//   fix and resubmit; no partial recompute occurs.
// - ErrorInvariantViolation: internal inconsistency that upstream validation
//   should have prevented (both discount fields set after resolution, mode
//   mismatch). Surfaced hard instead of silently corrected.
var (
	ErrorRecordNotFound     = errors.New("record not found")
	ErrorValidationFailed   = errors.New("validation failed")
	ErrorInvariantViolation = errors.New("invariant violation")
)

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}

// IsDuplicateKeyError reports MySQL error 1062. Concurrent document creation
// can race on the per-business sequence number; callers retry on this.
func IsDuplicateKeyError(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
