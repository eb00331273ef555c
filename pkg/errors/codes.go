package errors

// 业务码沿用HTTP语义，随响应体返回
// 授权拒绝另带机器可读的deny_code，见response包

const (
	CodeSuccess      = 200
	CodeInvalidParam = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeServerError  = 500
)
