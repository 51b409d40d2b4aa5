package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"github.com/noah-isme/curriculum-api/internal/models"
	appErrors "github.com/noah-isme/curriculum-api/pkg/errors"
	"github.com/noah-isme/curriculum-api/pkg/i18n"
)

const (
	translatorKey = "i18n_translator"
	localeKey     = "i18n_locale"
)

// Envelope represents the common response contract.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// Localize negotiates the request locale once so error bodies can be translated.
func Localize(tr *i18n.Translator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(translatorKey, tr)
		c.Set(localeKey, tr.Negotiate(c.GetHeader("Accept-Language")))
		c.Next()
	}
}

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	envelope := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := translate(c, appErrors.FromError(err))
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(appErr.Status, Envelope{Error: appErr})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func translate(c *gin.Context, err *appErrors.Error) *appErrors.Error {
	if err == nil || err.MessageKey == "" {
		return err
	}
	trValue, ok := c.Get(translatorKey)
	if !ok {
		return err
	}
	tr, _ := trValue.(*i18n.Translator)
	tag := language.English
	if v, ok := c.Get(localeKey); ok {
		if t, ok := v.(language.Tag); ok {
			tag = t
		}
	}
	localized := *err
	localized.Message = tr.Message(tag, err.MessageKey, err.Message)
	return &localized
}
