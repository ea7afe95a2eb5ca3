package usecase

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/atsocial/atsocial"
)

var tracer = otel.Tracer("usecase")

// SessionUsecase fronts the transport's session lifecycle. Credential
// persistence lives inside the transport; this layer adds tracing and a
// stable surface for the REST handler.
type SessionUsecase struct {
	transport atsocial.Transport
}

func NewSessionUsecase(transport atsocial.Transport) *SessionUsecase {
	return &SessionUsecase{transport: transport}
}

func (u *SessionUsecase) Login(ctx context.Context, identifier, secret string) (*atsocial.Session, error) {
	ctx, span := tracer.Start(ctx, "Session.Login")
	defer span.End()

	session, err := u.transport.Login(ctx, identifier, secret)
	if err != nil {
		return nil, fmt.Errorf("failed to login: %v", err)
	}
	return session, nil
}

// Restore resumes a persisted session. A stale or rejected stored session
// is reported as absent, never as an error.
func (u *SessionUsecase) Restore(ctx context.Context) (bool, error) {
	ctx, span := tracer.Start(ctx, "Session.Restore")
	defer span.End()

	return u.transport.RestoreSession(ctx)
}

func (u *SessionUsecase) Logout(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Session.Logout")
	defer span.End()

	if err := u.transport.Logout(ctx); err != nil {
		return fmt.Errorf("failed to logout: %v", err)
	}
	return nil
}

func (u *SessionUsecase) Current() *atsocial.Session {
	return u.transport.GetSession()
}
