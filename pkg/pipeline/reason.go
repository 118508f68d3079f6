package pipeline

import (
	"context"
	"errors"

	"menuprice/pkg/dberr"
	"menuprice/pkg/ledger"
	"menuprice/pkg/reconcile"
	"menuprice/pkg/region"
)

var reasons = []struct {
	err  error
	code string
}{
	{region.ErrInvalidGeometry, "InvalidGeometry"},
	{region.ErrDuplicateRegion, "DuplicateRegion"},
	{region.ErrRegionNotFound, "RegionNotFound"},
	{region.ErrImageNotFound, "ImageNotFound"},
	{region.ErrInvalidTransition, "InvalidTransition"},
	{reconcile.ErrUnresolvedPrice, "UnresolvedPrice"},
	{reconcile.ErrInvalidPriceFormat, "InvalidPriceFormat"},
	{ledger.ErrPersistenceUnavailable, "PersistenceUnavailable"},
	{context.Canceled, "Cancelled"},
	{context.DeadlineExceeded, "Cancelled"},
	{ErrSuperseded, "Superseded"},
}

// ReasonCode maps an error to the code reported to clients. Storage failures
// from the region store count as PersistenceUnavailable; anything else
// unknown is "Internal".
func ReasonCode(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.code
		}
	}
	if dberr.IsUnavailable(err) {
		return "PersistenceUnavailable"
	}
	return "Internal"
}
