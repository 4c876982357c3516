package http

import (
	"context"
	"net/http"
	"testing"

	"github.com/goodbye-jack/go-tenancy/tenant"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestWhichError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"params", ParamsErrorf("page %d", -1), http.StatusBadRequest},
		{"client", ClientError("bad state"), http.StatusBadRequest},
		{"not found", NotFoundError("memo"), http.StatusNotFound},
		{"record not found", errors.Wrap(gorm.ErrRecordNotFound, "load"), http.StatusNotFound},
		{"duplicate", DuplicateError("memo exists"), http.StatusConflict},
		{"server", ServerErrorf("error occurring, %d", 2), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, msg, _ := whichError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestWhichErrorTenantContext(t *testing.T) {
	_, err := tenant.Require(context.Background())
	status, msg, suggestion := whichError(err)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, msg, "no tenant context")
	assert.NotEmpty(t, suggestion)
}
