// internal/api/error_codes.go
package api

// 接口层自己产生的错误提示，业务错误的提示来自 services 返回的 AppError
const (
	msgInternalError   = "服务器内部错误"
	msgBadRequest      = "请求参数格式错误"
	msgUnauthorized    = "未登录或登录已过期"
	msgTokenExpired    = "登录已过期，请重新登录"
	msgTooManyRequests = "请求过于频繁，请稍后再试"
	msgRouteNotFound   = "接口不存在"
	msgInvalidIndex    = "分镜序号格式不正确"
	msgUnavailable     = "服务暂不可用"
)

// 成功提示
const (
	msgOK             = "操作成功"
	msgRegistered     = "注册成功"
	msgLoggedIn       = "登录成功"
	msgLoggedOut      = "退出成功"
	msgGenerated      = "生成成功"
	msgSaved          = "保存成功"
	msgSelected       = "已选择该版本"
	msgRegenerated    = "重新生成成功"
	msgSessionDeleted = "删除成功"
)
