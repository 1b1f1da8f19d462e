package constant

// 系统级错误码 (1xxx)
const (
	CodeSuccess       = 0    // 操作成功
	CodeSystemError   = 1000 // 系统内部错误
	CodeDatabaseError = 1001 // 数据库操作失败
	CodeRedisError    = 1002 // Redis缓存服务错误
	CodeTimeout       = 1005 // 请求处理超时
)

// 参数错误码
const (
	CodeInvalidParams = 1100 // 参数格式错误
	CodeMissingParams = 1101 // 缺少必要参数
	CodeParamsType    = 1103 // 参数类型错误
)

// 认证授权错误码
const (
	CodeUnauthorized   = 1200 // 未授权访问
	CodeSignatureError = 1203 // 签名验证失败
)

// 业务级错误码 (2xxx)
const (
	CodeOrderNotFound      = 2100 // 订单不存在
	CodeOrderStatusInvalid = 2102 // 订单状态无效，无法进行当前操作
	CodeOrderAmountInvalid = 2103 // 订单金额无效
	CodeOrderExpired       = 2104 // 订单已过期

	CodeChannelNotFound    = 2200 // 支付通道未注册
	CodeChannelUnavailable = 2206 // 支付通道暂时不可用

	CodePaymentRejected   = 2300 // 渠道明确拒绝交易
	CodePaymentProcessing = 2301 // 支付处理中，请勿重复提交
	CodePaymentCurrency   = 2304 // 币种不合法

	CodeRiskRejected = 2400 // 风控拒绝交易

	CodeRefundAmountError = 2602 // 退款金额超过可退金额
	CodeRefundNotAllowed  = 2603 // 源交易非成功状态，不可退款

	CodeConcurrentRequest    = 2700 // 同一订单创建请求并发冲突
	CodeConsistencyViolation = 2701 // 终态冲突，转人工核对
)
