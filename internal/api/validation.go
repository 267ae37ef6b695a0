// internal/api/validation.go
package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// 字段的中文名，key 为 json 字段名
var fieldLabels = map[string]string{
	"email":           "邮箱",
	"password":        "密码",
	"nickname":        "昵称",
	"avatarUrl":       "头像地址",
	"videoType":       "视频类型",
	"themeInput":      "视频主题",
	"stylePreference": "风格偏好",
	"versionCount":    "生成版本数",
	"content":         "脚本内容",
	"locked":          "锁定状态",
}

var registerOnce sync.Once

// RegisterValidators 向 gin 的校验器注册 notblank 规则，并让错误信息使用 json 字段名
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("notblank", validators.NotBlank)
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// bindJSON 绑定请求体，失败时直接写出 400 响应并返回 false
func bindJSON(c *gin.Context, target interface{}) bool {
	if err := c.ShouldBindJSON(target); err != nil {
		NewResponseHelper().BadRequest(c, validationMessage(err))
		return false
	}
	return true
}

// validationMessage 取第一个校验错误转换成中文提示
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return msgBadRequest
	}

	fe := verrs[0]
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required", "notblank":
		return label + "不能为空"
	case "email":
		return label + "格式不正确"
	case "url":
		return label + "必须是有效的URL"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s长度不能少于%s个字符", label, fe.Param())
		}
		return fmt.Sprintf("%s不能小于%s", label, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s长度不能超过%s个字符", label, fe.Param())
		}
		return fmt.Sprintf("%s不能大于%s", label, fe.Param())
	default:
		return label + "不合法"
	}
}
