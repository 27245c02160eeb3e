package taxation

import "errors"

// Configuration errors abort the computation entirely; no further fields are
// written once one is raised. Numeric edge cases never produce errors.
var (
	// ErrMissingConversionRate indicates the document currency differs from
	// the company currency and no exchange rate could be resolved.
	ErrMissingConversionRate = errors.New("conversion rate is mandatory when document and company currency differ")
	// ErrDiscountTargetUnset indicates a discount amount without a selected
	// apply-discount-on target.
	ErrDiscountTargetUnset = errors.New("apply discount on must be selected")
	// ErrPreviousRowOnFirst indicates a previous-row charge type on the first
	// tax row.
	ErrPreviousRowOnFirst = errors.New("cannot use charge type 'On Previous Row Amount' or 'On Previous Row Total' for the first tax row")
	// ErrBadRowReference indicates a row_id that does not point at an earlier
	// tax row.
	ErrBadRowReference = errors.New("tax row reference must point to an earlier row")
	// ErrInvalidInclusiveTax indicates a charge type that cannot be marked as
	// included in the print rate.
	ErrInvalidInclusiveTax = errors.New("charge type cannot be included in print rate")
)
