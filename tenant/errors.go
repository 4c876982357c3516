package tenant

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNoTenantContext     = errors.New("no tenant context set")
	ErrUnsupportedStrategy = errors.New("unsupported tenancy strategy")
	ErrTenantNotFound      = errors.New("tenant not found")
)

type Kind string

const (
	KindContext  Kind = "context"
	KindNotFound Kind = "not_found"
	KindConfig   Kind = "config"
	KindLoader   Kind = "loader"
)

// Error 租户相关错误，Suggestion 给出修复建议
type Error struct {
	Kind       Kind
	TenantID   string
	Message    string
	Suggestion string
	cause      error
}

func (e *Error) Error() string {
	if e.TenantID != "" {
		return fmt.Sprintf("%s (tenant %q)", e.Message, e.TenantID)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) Cause() error {
	return e.cause
}

func newContextError() error {
	return errors.WithStack(&Error{
		Kind:       KindContext,
		Message:    ErrNoTenantContext.Error(),
		Suggestion: "Ensure the tenant middleware is installed and the request carries the X-Tenant-ID header",
		cause:      ErrNoTenantContext,
	})
}

func NotFoundError(id string) error {
	return errors.WithStack(&Error{
		Kind:       KindNotFound,
		TenantID:   id,
		Message:    ErrTenantNotFound.Error(),
		Suggestion: "Use one of the available tenant IDs or register the tenant first",
		cause:      ErrTenantNotFound,
	})
}

func LoaderError(id string, err error) error {
	return errors.WithStack(&Error{
		Kind:       KindLoader,
		TenantID:   id,
		Message:    "tenant loader failed: " + err.Error(),
		Suggestion: "Check the tenant provisioning source is reachable",
		cause:      err,
	})
}

// Suggestion 取出错误链上的修复建议
func Suggestion(err error) string {
	var te *Error
	if errors.As(err, &te) {
		return te.Suggestion
	}
	return ""
}
