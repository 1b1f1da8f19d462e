package model

// 订单/交易/退款状态。订单主状态机:
// CREATED → PENDING → SUBMITTED → {SUCCEEDED|FAILED|AMBIGUOUS}
// AMBIGUOUS → {SUCCEEDED|FAILED|EXPIRED}
// 退款子状态机: CREATED → SUBMITTED → {SUCCEEDED|FAILED}，提交超时同样走 AMBIGUOUS
const (
	StatusCreated   int8 = 0
	StatusPending   int8 = 1
	StatusSubmitted int8 = 2
	StatusSucceeded int8 = 3
	StatusFailed    int8 = 4
	StatusAmbiguous int8 = 5
	StatusExpired   int8 = 6
)

var statusNames = map[int8]string{
	StatusCreated:   "CREATED",
	StatusPending:   "PENDING",
	StatusSubmitted: "SUBMITTED",
	StatusSucceeded: "SUCCEEDED",
	StatusFailed:    "FAILED",
	StatusAmbiguous: "AMBIGUOUS",
	StatusExpired:   "EXPIRED",
}

func StatusName(s int8) string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// IsTerminal 终态判定。EXPIRED 与 FAILED 分开记录，未知结果不得折叠为失败
func IsTerminal(s int8) bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusExpired
}
