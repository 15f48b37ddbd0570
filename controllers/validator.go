package controllers

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Allowed upload types
var allowedCSVExtensions = map[string]bool{
	".csv": true,
	".txt": true,
}

// paginationQuery is bound from list endpoints.
type paginationQuery struct {
	Page    int `form:"page,default=1" validate:"gte=1,lte=1000000"`
	PerPage int `form:"perPage,default=20" validate:"gte=1,lte=100"`
}

// RequestValidator handles all input validation
type RequestValidator struct {
	validate       *validator.Validate
	maxUploadBytes int64
}

func NewRequestValidator(maxUploadBytes int64) *RequestValidator {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 5 * 1024 * 1024
	}
	return &RequestValidator{
		validate:       validator.New(),
		maxUploadBytes: maxUploadBytes,
	}
}

// ParsePagination validates and parses pagination parameters
func (rv *RequestValidator) ParsePagination(c *gin.Context) (int, int, error) {
	var q paginationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return 0, 0, fmt.Errorf("invalid pagination parameters")
	}
	if err := rv.validate.Struct(&q); err != nil {
		return 0, 0, fmt.Errorf("invalid pagination parameters")
	}
	return q.Page, q.PerPage, nil
}

// IsValidCSVFile checks if the file is a valid CSV
func (rv *RequestValidator) IsValidCSVFile(file *multipart.FileHeader) bool {
	contentType := file.Header.Get("Content-Type")
	if contentType == "text/csv" || contentType == "application/csv" || contentType == "text/plain" {
		return true
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	return allowedCSVExtensions[ext]
}

// ValidateFileSize checks if file size is within limits
func (rv *RequestValidator) ValidateFileSize(file *multipart.FileHeader) error {
	if file.Size > rv.maxUploadBytes {
		return fmt.Errorf("file too large (max %dMB)", rv.maxUploadBytes/(1024*1024))
	}
	return nil
}
