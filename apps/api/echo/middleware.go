package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/catechism/core/user"
)

// requireCapability lets the request through when the context user's roles grant capability.
func requireCapability(capability user.Capability, svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sess, err := getContextSession(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context session")
			}
			if sess.Can(capability) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
