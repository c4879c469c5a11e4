package middleware

import "github.com/gin-gonic/gin"

// abort 以统一响应结构终止请求，结构与 transport/http.Response 一致
func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code": status,
		"msg":  msg,
	})
}
