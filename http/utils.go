package http

import (
	"github.com/gin-gonic/gin"
	"github.com/goodbye-jack/go-tenancy/tenant"
)

// GetTenant 当前请求绑定的租户，没有时为空
func GetTenant(c *gin.Context) string {
	id, _ := tenant.Get(c.Request.Context())
	return id
}

func JsonResponse(c *gin.Context, data interface{}, err error) {
	if err != nil {
		status, message, suggestion := whichError(err)
		body := gin.H{
			"data":    nil,
			"message": message,
		}
		if suggestion != "" {
			body["solution"] = suggestion
		}
		c.JSON(status, body)
		return
	}
	c.JSON(200, gin.H{
		"data":    data,
		"message": "success",
	})
}
