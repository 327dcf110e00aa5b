package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope every endpoint returns. Success responses carry
// message "success" and the payload in data; failures carry message "fail"
// and a human-readable detail in data.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "success",
		Data:    data,
	})
}

func fail(c *gin.Context, status int, detail string) {
	c.JSON(status, Response{
		Code:    status,
		Message: "fail",
		Data:    detail,
	})
}
