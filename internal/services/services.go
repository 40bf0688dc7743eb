package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/foodgram/apiserver/internal/apperr"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Recorder receives domain metrics. *metrics.Collector implements it.
type Recorder interface {
	RecordLogin(success bool)
	RecordTokenRevoked()
	RecordUserRegistered()
	RecordRecipeCreated()
}

type noopRecorder struct{}

func (noopRecorder) RecordLogin(bool)      {}
func (noopRecorder) RecordTokenRevoked()   {}
func (noopRecorder) RecordUserRegistered() {}
func (noopRecorder) RecordRecipeCreated()  {}

// EventPublisher publishes domain events. *mq.MQ implements it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, payload any) (string, error)
}

// Option configures the ambient dependencies shared by all services.
type Option func(*deps)

type deps struct {
	logger    *zap.Logger
	recorder  Recorder
	publisher EventPublisher
}

func newDeps(opts []Option) deps {
	d := deps{
		logger:   zap.NewNop(),
		recorder: noopRecorder{},
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func WithLogger(l *zap.Logger) Option {
	return func(d *deps) {
		if l != nil {
			d.logger = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(d *deps) {
		if r != nil {
			d.recorder = r
		}
	}
}

// WithPublisher enables domain events. Passing nil leaves them disabled.
func WithPublisher(p EventPublisher) Option {
	return func(d *deps) {
		d.publisher = p
	}
}

// publish sends an event after a successful write. Failures are logged and
// never reach the caller.
func (d deps) publish(ctx context.Context, topic string, payload any) {
	if d.publisher == nil {
		return
	}
	if _, err := d.publisher.PublishEvent(ctx, topic, payload); err != nil {
		d.logger.Warn("publish event failed", zap.String("topic", topic), zap.Error(err))
	}
}

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// validateStruct runs the struct's validate tags and converts failures into a
// field-keyed apperr validation error.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		name := fieldPath(fe)
		fields[name] = append(fields[name], fieldMessage(fe))
	}
	return apperr.ValidationFields(fields)
}

// fieldPath drops the top-level struct name from the namespace, so
// "RecipeInput.ingredients[0].amount" becomes "ingredients[0].amount".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "username":
		return "Enter a valid username. It may contain only letters, numbers, and @/./+/-/_ characters."
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("Ensure this field has at least %s items.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "gte":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
	case "nefield":
		return "The new password must differ from the current password."
	case "unique":
		return "Duplicate values are not allowed."
	default:
		return fmt.Sprintf("Failed on the %q rule.", fe.Tag())
	}
}
