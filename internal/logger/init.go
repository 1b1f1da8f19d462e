package logger

import "github.com/sirupsen/logrus"

var (
	Engine   *logrus.Logger // 订单/状态机日志
	Callback *logrus.Logger // 上游回调日志，含验签失败的安全事件
	Notify   *logrus.Logger // 商户通知日志
)

func Init() {
	Engine = NewLogger("engine")
	Callback = NewLogger("callback")
	Notify = NewLogger("notify")
}
