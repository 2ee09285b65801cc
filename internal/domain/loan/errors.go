package loan

import "errors"

var (
	ErrNotFound    = errors.New("loan_not_found")
	ErrAlreadyPaid = errors.New("loan_already_paid")
	ErrNotPayable  = errors.New("loan_not_payable")
	ErrNotApproved = errors.New("loan_not_approved")
)

// IsConflict reports whether err is a state conflict: the request was well
// formed but the loan's current state does not allow it.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyPaid) || errors.Is(err, ErrNotPayable) || errors.Is(err, ErrNotApproved)
}
