package middleware

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/atsocial/atsocial/internal/domain"
	"github.com/atsocial/atsocial/internal/usecase"
)

var tracer = otel.Tracer("session")

type SessionMiddleware struct {
	sessions *usecase.SessionUsecase
}

func NewSessionMiddleware(sessions *usecase.SessionUsecase) *SessionMiddleware {
	return &SessionMiddleware{sessions: sessions}
}

// ResolveSession tags the request with the active session account, restoring
// a persisted session on the first request after startup. Requests proceed
// either way; the usecases enforce authentication where it matters.
func (s *SessionMiddleware) ResolveSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Session.Middleware.ResolveSession")
		defer span.End()

		session := s.sessions.Current()
		if session == nil {
			ok, err := s.sessions.Restore(ctx)
			if err != nil {
				span.RecordError(errors.Wrap(err, "SessionMiddleware.ResolveSession: restore failed"))
			} else if ok {
				session = s.sessions.Current()
			}
		}

		if session != nil {
			ctx = context.WithValue(ctx, domain.SessionDIDCtxKey, session.DID)
			span.SetAttributes(attribute.String("SessionDid", session.DID))
		}

		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
