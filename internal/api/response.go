package api

import "github.com/gin-gonic/gin"

// Response is the standard API response envelope
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// SuccessResponse returns a success response with data
func SuccessResponse(data interface{}) *Response {
	return &Response{
		Success: true,
		Data:    data,
	}
}

// SuccessResponseWithMessage returns a success response with message and data
func SuccessResponseWithMessage(data interface{}, message string) *Response {
	return &Response{
		Success: true,
		Data:    data,
		Message: message,
	}
}

// ErrorResponse returns an error response
func ErrorResponse(err *APIError) *Response {
	return &Response{
		Success: false,
		Error:   err,
	}
}

// RespondWith sends a success response with data
func RespondWith(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, SuccessResponse(data))
}

// RespondWithMessage sends a success response with data and message
func RespondWithMessage(c *gin.Context, statusCode int, data interface{}, message string) {
	c.JSON(statusCode, SuccessResponseWithMessage(data, message))
}

// RespondWithError sends an error response
func RespondWithError(c *gin.Context, err *APIError) {
	c.JSON(err.StatusCode, ErrorResponse(err))
}
