package handler

import (
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/timmy/wanderlust/internal/domain"
)

var registerOnce sync.Once

// RegisterValidators adds the catalog vocabularies to gin's validator so
// request structs can use `binding:"season"` and `binding:"climate"`.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("season", vocabulary(domain.Seasons))
		_ = v.RegisterValidation("climate", vocabulary(domain.Climates))
		_ = v.RegisterValidation("interaction_kind", func(fl validator.FieldLevel) bool {
			return domain.InteractionKind(fl.Field().String()).Valid()
		})
	})
}

// vocabulary accepts blank values and any member of values.
func vocabulary[T ~string](values []T) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s := strings.TrimSpace(fl.Field().String())
		if s == "" {
			return true
		}
		for _, v := range values {
			if string(v) == s {
				return true
			}
		}
		return false
	}
}
