package gql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wye/wye-server/internal/api/apierr"
	"github.com/wye/wye-server/internal/logging"
	"github.com/wye/wye-server/internal/middleware"
	"github.com/wye/wye-server/internal/model"
)

// errInternal is what the executor sees for infrastructure failures. The
// handler discards the GraphQL response when it is raised.
var errInternal = errors.New("internal server error")

// fieldError is a domain failure reported as a GraphQL field error
type fieldError struct {
	code    string
	message string
	fields  []model.FieldError
}

func (e *fieldError) Error() string {
	return e.message
}

// Extensions is picked up by the executor and copied into the error
func (e *fieldError) Extensions() map[string]interface{} {
	ext := map[string]interface{}{"code": e.code}
	if len(e.fields) > 0 {
		fields := make(map[string]string, len(e.fields))
		for _, f := range e.fields {
			fields[f.Field] = f.Message
		}
		ext["fields"] = fields
	}
	return ext
}

// resolveError classifies err: domain errors become field errors, anything else
// is logged and fails the request.
func resolveError(ctx context.Context, logger *slog.Logger, op string, err error) error {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		return &fieldError{code: apierr.CodeValidation, message: verr.Error(), fields: verr.Fields}
	case errors.Is(err, model.ErrValidation):
		return &fieldError{code: apierr.CodeValidation, message: err.Error()}
	case errors.Is(err, model.ErrEmailTaken):
		return &fieldError{
			code:    apierr.CodeConflict,
			message: model.ErrEmailTaken.Error(),
			fields:  []model.FieldError{{Field: "email", Message: model.ErrEmailTaken.Error()}},
		}
	}

	logging.LogError(logger, op+" failed", err, "request_id", requestID(ctx))
	markFatal(ctx, err)
	return errInternal
}

func requestID(ctx context.Context) string {
	return middleware.GetRequestID(ctx)
}

// panicLogger implements the executor's panic logger. A recovered panic fails
// the request the same way an infrastructure error does.
type panicLogger struct {
	logger *slog.Logger
}

func (l *panicLogger) LogPanic(ctx context.Context, value interface{}) {
	l.logger.ErrorContext(ctx, "panic in resolver",
		slog.Any("panic", value),
		slog.String("request_id", requestID(ctx)),
	)
	markFatal(ctx, fmt.Errorf("panic in resolver: %v", value))
}
