package authorize

import (
	"context"
	"errors"

	"github.com/Alijeyrad/simorq_booking/pkg/reqctx"
)

var ErrNoSubjectInContext = errors.New("no subject found in context")

// SubjectFromContext returns the authenticated user as a casbin subject.
func SubjectFromContext(ctx context.Context) (GroupSubject, error) {
	uid, ok := reqctx.UserIDFromContext(ctx)
	if !ok || uid <= 0 {
		return "", ErrNoSubjectInContext
	}
	return UserSubject(uid), nil
}

// Can checks the context's user against sys-domain policy.
func Can(ctx context.Context, auth IAuthorization, object Resource, action Action) error {
	subject, err := SubjectFromContext(ctx)
	if err != nil {
		return err
	}
	return auth.MustEnforce(ctx, subject, DomainSys, object, action)
}
