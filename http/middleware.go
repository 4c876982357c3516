package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goodbye-jack/go-tenancy/log"
	"github.com/goodbye-jack/go-tenancy/utils"
	"github.com/sirupsen/logrus"
)

// RecoveryMiddleware panic转500，并记录栈信息
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(logrus.Fields{
					"path":   c.Request.URL.Path,
					"method": c.Request.Method,
					"tenant": GetTenant(c),
				}).Errorf("panic: %v\n%s", r, utils.GetStack(1))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"data":    nil,
					"message": serverErrorMessage,
				})
			}
		}()
		c.Next()
	}
}

// AccessLogMiddleware 请求日志。挂在租户拦截器之后才能带上tenant_id
func AccessLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := logrus.Fields{
			"status":  c.Writer.Status(),
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"latency": time.Since(start).String(),
		}
		if id := GetTenant(c); id != "" {
			fields["tenant_id"] = id
		}
		log.WithFields(fields).Debug("request")
	}
}
