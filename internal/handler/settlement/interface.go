package settlement

import "github.com/gin-gonic/gin"

type IHandler interface {
	Enqueue(c *gin.Context)
}
