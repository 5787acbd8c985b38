package shared

import (
	"context"

	"github.com/google/uuid"
)

// OrgContext identifies the organisation and actor an operation runs for.
// The engine never falls back to a default organisation.
type OrgContext struct {
	OrgID  uuid.UUID
	UserID uuid.UUID
}

// Validate rejects an empty organisation.
func (o OrgContext) Validate() error {
	if o.OrgID == uuid.Nil {
		return ErrMissingOrg
	}
	return nil
}

type orgContextKey struct{}

// ContextWithOrg stores the org context in ctx.
func ContextWithOrg(ctx context.Context, oc OrgContext) context.Context {
	return context.WithValue(ctx, orgContextKey{}, oc)
}

// OrgFromContext extracts the org context placed by the ingress middleware.
func OrgFromContext(ctx context.Context) (OrgContext, bool) {
	oc, ok := ctx.Value(orgContextKey{}).(OrgContext)
	return oc, ok
}
