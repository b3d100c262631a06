package router

import (
	"context"
	"net/http"

	ctrl "github.com/SakuraBurst/goaltracker/internal/goaltracker/controller"
	"github.com/SakuraBurst/goaltracker/internal/goaltracker/database"
	"github.com/SakuraBurst/goaltracker/internal/goaltracker/router/middleware"
	"github.com/SakuraBurst/goaltracker/internal/goaltracker/types"
	"github.com/go-faster/errors"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const internalServerErrorMessage = "internal server error"

type failure struct {
	status  int
	code    string
	message string
}

var failures = []struct {
	target error
	failure
}{
	{ctrl.ErrValidation, failure{http.StatusBadRequest, "VALIDATION_ERROR", "invalid request"}},
	{ctrl.ErrInvalidCredentials, failure{http.StatusBadRequest, "INVALID_CREDENTIALS", "invalid email or password"}},
	{database.ErrUserAlreadyExist, failure{http.StatusBadRequest, "USER_EXISTS", "user with this email already exists"}},
	{ctrl.ErrAlreadyCompleted, failure{http.StatusBadRequest, "ALREADY_COMPLETED", "goal is already completed"}},
	{ctrl.ErrAlreadyMember, failure{http.StatusBadRequest, "ALREADY_MEMBER", "user is already a member of this group"}},
	{ctrl.ErrCapacityExceeded, failure{http.StatusBadRequest, "CAPACITY_EXCEEDED", "group has reached its maximum size"}},
	{ctrl.ErrCannotRemoveCreator, failure{http.StatusBadRequest, "CANNOT_REMOVE_CREATOR", "group creator cannot be removed"}},
	{ctrl.ErrForbidden, failure{http.StatusForbidden, "FORBIDDEN", "forbidden"}},
	{database.ErrUserNotExist, failure{http.StatusNotFound, "NOT_FOUND", "user not found"}},
	{database.ErrGoalNotExist, failure{http.StatusNotFound, "NOT_FOUND", "goal not found"}},
	{database.ErrGroupNotExist, failure{http.StatusNotFound, "NOT_FOUND", "group not found"}},
	{database.ErrMemberNotExist, failure{http.StatusNotFound, "NOT_FOUND", "user is not a member of this group"}},
	{database.ErrItemNotExist, failure{http.StatusNotFound, "NOT_FOUND", "marketplace item not found"}},
	{context.DeadlineExceeded, failure{http.StatusInternalServerError, "TIMEOUT", "request timed out"}},
}

// classify maps a use case error to its response. Domain errors carrying a
// reason keep it as the message; anything unknown is an internal error.
func classify(err error) failure {
	for _, f := range failures {
		if !errors.Is(err, f.target) {
			continue
		}
		res := f.failure
		var domainErr *ctrl.Error
		if errors.As(err, &domainErr) && domainErr.Reason != "" {
			res.message = domainErr.Reason
		}
		return res
	}
	return failure{http.StatusInternalServerError, "INTERNAL_ERROR", internalServerErrorMessage}
}

func (r *HttpRouter) fail(ctx *fiber.Ctx, op string, err error) error {
	f := classify(err)
	fields := []zap.Field{zap.Error(err), zap.String("path", ctx.Path())}
	if userID := middleware.UserID(ctx); userID != "" {
		fields = append(fields, zap.String("user_id", userID))
	}
	if f.status >= http.StatusInternalServerError {
		r.appLogger.Error(op+" failed", fields...)
	} else {
		r.appLogger.Info(op+" rejected", fields...)
	}
	ctx.Status(f.status)
	return ctx.JSON(types.Response{Success: false, Message: f.message, Error: f.code})
}

func badRequest(ctx *fiber.Ctx, message string) error {
	ctx.Status(http.StatusBadRequest)
	return ctx.JSON(types.Response{Success: false, Message: message, Error: "VALIDATION_ERROR"})
}

// errorHandler answers errors that escape the handlers, such as unknown routes.
func (r *HttpRouter) errorHandler(ctx *fiber.Ctx, err error) error {
	status := http.StatusInternalServerError
	message := internalServerErrorMessage
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status = fiberErr.Code
		message = fiberErr.Message
	}
	code := "REQUEST_ERROR"
	switch {
	case status == http.StatusNotFound:
		code = "NOT_FOUND"
	case status == http.StatusMethodNotAllowed:
		code = "METHOD_NOT_ALLOWED"
	case status >= http.StatusInternalServerError:
		code = "INTERNAL_ERROR"
		r.appLogger.Error("unhandled error", zap.Error(err), zap.String("path", ctx.Path()))
	}
	ctx.Status(status)
	return ctx.JSON(types.Response{Success: false, Message: message, Error: code})
}
