package handlers

import (
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"posbackend/internal/models"
)

var paymentTypeList = strings.Join([]string{
	string(models.PaymentCash),
	string(models.PaymentCreditCard),
	string(models.PaymentYemeksepetiOnline),
	string(models.PaymentGetirOnline),
	string(models.PaymentTrendyolOnline),
}, ", ")

var registerOnce sync.Once

// registerValidators adds the custom binding tags used by request structs.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("paymenttype", func(fl validator.FieldLevel) bool {
			return models.PaymentType(fl.Field().String()).Valid()
		})
	})
}
