package constant

// ErrorInfo 错误信息结构
type ErrorInfo struct {
	CN string `json:"cn"` // 中文错误信息
	EN string `json:"en"` // 英文错误信息
}

// ErrorMessages 错误信息映射
var ErrorMessages = map[int]ErrorInfo{
	CodeSuccess:       {"操作成功", "Success"},
	CodeSystemError:   {"系统错误", "System error"},
	CodeDatabaseError: {"数据库错误", "Database error"},
	CodeRedisError:    {"缓存服务错误", "Cache error"},
	CodeTimeout:       {"请求处理超时", "Request timeout"},

	CodeInvalidParams: {"参数格式错误", "Invalid params"},
	CodeMissingParams: {"缺少必要参数", "Missing params"},
	CodeParamsType:    {"参数类型错误", "Params type error"},

	CodeUnauthorized:   {"未授权访问", "Unauthorized"},
	CodeSignatureError: {"签名验证失败", "Signature verification failed"},

	CodeOrderNotFound:      {"订单不存在", "Order not found"},
	CodeOrderStatusInvalid: {"订单状态无效", "Order status invalid"},
	CodeOrderAmountInvalid: {"订单金额无效", "Order amount invalid"},
	CodeOrderExpired:       {"订单已过期", "Order expired"},

	CodeChannelNotFound:    {"支付通道未注册", "Channel not registered"},
	CodeChannelUnavailable: {"支付通道暂时不可用", "Channel unavailable"},

	CodePaymentRejected:   {"渠道拒绝交易", "Payment rejected by channel"},
	CodePaymentProcessing: {"支付处理中", "Payment processing"},
	CodePaymentCurrency:   {"币种不合法", "Invalid currency"},

	CodeRiskRejected: {"风控拒绝交易", "Risk control rejected"},

	CodeRefundAmountError: {"退款金额超过可退金额", "Refund amount exceeds refundable"},
	CodeRefundNotAllowed:  {"源交易不可退款", "Source transaction not refundable"},

	CodeConcurrentRequest:    {"订单创建请求冲突，请改用查询", "Concurrent create, query instead"},
	CodeConsistencyViolation: {"订单终态冲突，已转人工", "Conflicting terminal outcome, escalated"},
}
