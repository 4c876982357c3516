package http

import (
	"net/http"

	"github.com/goodbye-jack/go-tenancy/log"
	"github.com/goodbye-jack/go-tenancy/tenant"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const (
	serverErrorMessage    = "服务器有点儿累, 稍作休息."
	clientErrorMessage    = "操作问题"
	paramsErrorMessage    = "输入参数有问题， 要检查一下输入参数"
	notFoundErrorMessage  = "数据不存在"
	duplicateErrorMessage = "相关数据已经存在于系统内啦."
)

type serverError struct{}
type clientError struct{}
type paramsError struct{}
type notFoundError struct{}
type duplicateError struct{}

func (serverError) Error() string    { return "serverError" }
func (clientError) Error() string    { return "clientError" }
func (paramsError) Error() string    { return "paramsError" }
func (notFoundError) Error() string  { return "notFoundError" }
func (duplicateError) Error() string { return "duplicateError" }

func ServerError(message string) error {
	return errors.Wrap(serverError{}, message)
}

func ServerErrorf(format string, opt ...interface{}) error {
	return errors.Wrapf(serverError{}, format, opt...)
}

func ClientError(message string) error {
	return errors.Wrap(clientError{}, message)
}

func ClientErrorf(format string, opt ...interface{}) error {
	return errors.Wrapf(clientError{}, format, opt...)
}

func ParamsError(message string) error {
	return errors.Wrap(paramsError{}, message)
}

func ParamsErrorf(format string, opt ...interface{}) error {
	return errors.Wrapf(paramsError{}, format, opt...)
}

func NotFoundError(message string) error {
	return errors.Wrap(notFoundError{}, message)
}

func DuplicateError(message string) error {
	return errors.Wrap(duplicateError{}, message)
}

func DuplicateErrorf(format string, opt ...interface{}) error {
	return errors.Wrapf(duplicateError{}, format, opt...)
}

// whichError 错误 -> (状态码, 返回给前端的提示, 修复建议)
func whichError(err error) (int, string, string) {
	switch {
	case errors.As(err, new(paramsError)):
		return http.StatusBadRequest, paramsErrorMessage, ""
	case errors.As(err, new(clientError)):
		return http.StatusBadRequest, clientErrorMessage, ""
	case errors.As(err, new(notFoundError)), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, notFoundErrorMessage, ""
	case errors.Is(err, tenant.ErrTenantNotFound):
		return http.StatusNotFound, err.Error(), tenant.Suggestion(err)
	case errors.As(err, new(duplicateError)):
		return http.StatusConflict, duplicateErrorMessage, ""
	case errors.Is(err, tenant.ErrNoTenantContext):
		// 处理器依赖租户上下文但中间件没有绑定，属于服务端配置问题
		return http.StatusInternalServerError, err.Error(), tenant.Suggestion(err)
	case errors.As(err, new(serverError)):
		return http.StatusInternalServerError, serverErrorMessage, ""
	}
	log.Warnf("whichError(%v) not match. go default", err)
	return http.StatusInternalServerError, serverErrorMessage, ""
}
