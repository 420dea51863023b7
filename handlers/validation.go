package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"library-api/log"
	"library-api/models"
	"library-api/service"
)

const invalidBody = "Invalid request body"

var registerOnce sync.Once

// registerValidators installs the custom binding tags used by the request
// types and reports fields by their json or form name.
func registerValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("gin binding does not use go-playground/validator")
			return
		}
		v.RegisterTagNameFunc(fieldName)
		for tag, fn := range map[string]validator.Func{
			"notblank":   notBlank,
			"isodate":    isoDate,
			"floatrange": floatRange,
			"intrange":   intRange,
		} {
			if err = v.RegisterValidation(tag, fn); err != nil {
				return
			}
		}
	})
	return err
}

func fieldName(f reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name := strings.SplitN(f.Tag.Get(key), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func isoDate(fl validator.FieldLevel) bool {
	_, err := models.ParseDate(fl.Field().String())
	return err == nil
}

// bounds parses a "min:max" tag parameter; either side may be empty.
func bounds(param string) (lo, hi string) {
	lo, hi, _ = strings.Cut(param, ":")
	return lo, hi
}

// floatRange validates a numeric string within the inclusive bounds of its
// parameter, e.g. floatrange=0:5.
func floatRange(fl validator.FieldLevel) bool {
	v, err := strconv.ParseFloat(strings.TrimSpace(fl.Field().String()), 64)
	if err != nil {
		return false
	}
	lo, hi := bounds(fl.Param())
	if lo != "" {
		if min, err := strconv.ParseFloat(lo, 64); err == nil && v < min {
			return false
		}
	}
	if hi != "" {
		if max, err := strconv.ParseFloat(hi, 64); err == nil && v > max {
			return false
		}
	}
	return true
}

// intRange is floatRange for integer strings.
func intRange(fl validator.FieldLevel) bool {
	v, err := strconv.Atoi(strings.TrimSpace(fl.Field().String()))
	if err != nil {
		return false
	}
	lo, hi := bounds(fl.Param())
	if lo != "" {
		if min, err := strconv.Atoi(lo); err == nil && v < min {
			return false
		}
	}
	if hi != "" {
		if max, err := strconv.Atoi(hi); err == nil && v > max {
			return false
		}
	}
	return true
}

// fieldMessages maps "field.tag" or "field" to the message reported for a
// failing request field.
type fieldMessages map[string]string

// message returns the message for the first failing field of a binding error.
func (m fieldMessages) message(err error) (string, string) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if msg, ok := m[fe.Field()+"."+fe.Tag()]; ok {
			return fe.Field(), msg
		}
		if msg, ok := m[fe.Field()]; ok {
			return fe.Field(), msg
		}
		return fe.Field(), fmt.Sprintf("%s is invalid", fe.Field())
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if msg, ok := m[typeErr.Field]; ok {
			return typeErr.Field, msg
		}
		return typeErr.Field, fmt.Sprintf("%s has the wrong type", typeErr.Field)
	}
	return "", invalidBody
}

// bindJSON binds the request body, answering 400 with the first field
// message on failure.
func bindJSON(c *gin.Context, req any, messages fieldMessages) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		_, msg := messages.message(err)
		c.JSON(http.StatusBadRequest, gin.H{"message": msg})
		return false
	}
	return true
}

// idParam parses a positive integer path parameter.
func idParam(c *gin.Context, name, message string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"message": message})
		return 0, false
	}
	return id, true
}

func memberIDParam(c *gin.Context) (int, bool) {
	return idParam(c, "member_id", "Member ID must be a positive integer")
}

func bookIDParam(c *gin.Context) (int, bool) {
	return idParam(c, "book_id", "Book ID must be a positive integer")
}

// errorResponder writes service errors with their HTTP status.
type errorResponder struct {
	exposeErrors bool
}

func (r errorResponder) respond(c *gin.Context, err error) {
	switch service.KindOf(err) {
	case service.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
	case service.KindValidation, service.KindConflict:
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
	default:
		r.internal(c, err)
	}
}

func (r errorResponder) internal(c *gin.Context, err error) {
	log.GetLogger(c.Request.Context()).WithError(err).Error("request failed")
	detail := "Something went wrong"
	if r.exposeErrors {
		detail = err.Error()
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"message": "Internal server error",
		"error":   detail,
	})
}
