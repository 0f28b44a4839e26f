package api

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"knowledge-base/backend/internal/models"
	apperrors "knowledge-base/backend/pkg/errors"
)

// envelope is the shape of every JSON response
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

// pageData is a paginated list with links to its neighbours
type pageData[T any] struct {
	Count    int64   `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

func respondOK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, envelope{Code: http.StatusOK, Message: message, Data: data})
}

func respondCreated(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, envelope{Code: http.StatusCreated, Message: message, Data: data})
}

// respondError translates err into the envelope. Server-side failures are
// logged and answered with a generic message.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	status := apperrors.HTTPStatus(err)
	body := envelope{Code: status, Message: apperrors.Message(err)}

	var invalid *apperrors.ErrValidationFailed
	if stderrors.As(err, &invalid) {
		body.Errors = map[string][]string{invalid.Field: {invalid.Reason}}
	}

	if status >= http.StatusInternalServerError {
		log.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err),
		)
		body.Message = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, body)
}

// pageFromQuery reads page and page_size, clamping the size to max
func pageFromQuery(c *gin.Context, defaultSize, maxSize int) models.Page {
	page := models.Page{Number: 1, Size: defaultSize}
	if n, err := strconv.Atoi(c.Query("page")); err == nil && n > 0 {
		page.Number = n
	}
	if n, err := strconv.Atoi(c.Query("page_size")); err == nil && n > 0 {
		page.Size = n
	}
	if page.Size > maxSize {
		page.Size = maxSize
	}
	return page
}

// paginate wraps a window of results with next and previous links built
// from the request URL
func paginate[T any](c *gin.Context, p *models.Paginated[T], page models.Page) pageData[T] {
	out := pageData[T]{Count: p.Count, Results: p.Results}
	if out.Results == nil {
		out.Results = []T{}
	}
	if int64(page.Number*page.Size) < p.Count {
		next := pageURL(c, page.Number+1)
		out.Next = &next
	}
	if page.Number > 1 {
		prev := pageURL(c, page.Number-1)
		out.Previous = &prev
	}
	return out
}

func pageURL(c *gin.Context, number int) string {
	u := *c.Request.URL
	q := u.Query()
	q.Set("page", strconv.Itoa(number))
	u.RawQuery = q.Encode()

	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	u.Scheme = scheme
	u.Host = c.Request.Host
	return u.String()
}

func parseID(raw, field string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationFailed(field, "must be a positive integer")
	}
	return id, nil
}

// optionalID reads an optional integer query parameter
func optionalID(c *gin.Context, key string) (*int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	id, err := parseID(raw, key)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// bindJSON decodes the body, reporting malformed input as a validation error
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return apperrors.NewValidationFailed("body", err.Error())
	}
	return nil
}
