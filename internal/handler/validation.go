package handler

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/adhira/adhira/internal/security"
)

// fieldError はバリデーション失敗1件分のレスポンス要素。
type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// validationMessages は「JSONフィールド名.タグ」ごとの利用者向けメッセージ。
var validationMessages = map[string]string{
	"fullName.required":         "Full name is required",
	"fullName.plaintext":        "Full name is required",
	"email.required":            "Valid email is required",
	"email.email":               "Valid email is required",
	"mobileNumber.required":     "Mobile number is required",
	"mobileNumber.notblank":     "Mobile number is required",
	"address.required":          "Address is required",
	"address.plaintext":         "Address is required",
	"shopName.required":         "Shop name is required",
	"shopName.plaintext":        "Shop name is required",
	"shopDescription.required":  "Shop description is required",
	"shopDescription.plaintext": "Shop description is required",
	"businessAddress.required":  "Business address is required",
	"businessAddress.plaintext": "Business address is required",
	"password.min":              "Password must be at least 6 characters long",
	"password.required":         "Password is required",
	"confirmPassword.eqfield":   "Passwords do not match",
}

// RequestValidator はリクエストボディの構造体タグに基づく検証を行う。
// validator.Validateは構造体のメタデータをキャッシュするため、1つのインスタンスを共有する。
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator はRequestValidatorを生成する。
// エラーのフィールド名にはJSONのキー名を使う。
//
// 独自タグ:
//   - notblank: 空白のみの値を拒否する
//   - plaintext: サービス層と同じサニタイズを適用した結果が空になる値を拒否する
func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	sanitizer := security.NewProfileSanitizer()
	// 登録タグはコード内で固定のため、失敗はプログラミングエラー。
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("plaintext", func(fl validator.FieldLevel) bool {
		return sanitizer.Sanitize(fl.Field().String()) != ""
	}); err != nil {
		panic(err)
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{validate: v}
}

// Validate はreqを検証し、失敗したフィールドの一覧を返す。問題がなければnilを返す。
// 1フィールドにつき最初の失敗のみを返す。
func (rv *RequestValidator) Validate(req any) []fieldError {
	err := rv.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []fieldError{{Message: err.Error()}}
	}

	result := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		result = append(result, fieldError{
			Field:   fe.Field(),
			Message: messageFor(fe),
		})
	}
	return result
}

func messageFor(fe validator.FieldError) string {
	if msg, ok := validationMessages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	return fe.Field() + " is invalid"
}
