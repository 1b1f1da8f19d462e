package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"pay-gateway-api/internal/engine"
	"pay-gateway-api/internal/logger"
)

type CallbackHandler struct{ eng *engine.Engine }

func NewCallbackHandler(eng *engine.Engine) *CallbackHandler { return &CallbackHandler{eng: eng} }

// Receive 上游异步通知入口。应答体和 Content-Type 由渠道适配器决定，
// Accepted=false 用 500 暗示上游按自己的策略重发
func (h *CallbackHandler) Receive(c *gin.Context) {
	channel := c.Param("channel")

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "bad request")
		return
	}

	headers := make(map[string]string, len(c.Request.Header))
	for k := range c.Request.Header {
		headers[k] = c.GetHeader(k)
	}

	res, err := h.eng.HandleCallback(c.Request.Context(), channel, raw, headers)
	if err != nil {
		// 未注册渠道等入口错误
		logger.Callback.Warnf("callback rejected: channel=%s err=%v", channel, err)
		c.String(http.StatusNotFound, "unknown channel")
		return
	}

	status := http.StatusOK
	if !res.Accepted {
		status = http.StatusInternalServerError
	}
	logger.Callback.Infof("callback channel=%s accepted=%v http=%d", channel, res.Accepted, status)
	c.Data(status, res.ContentType, []byte(res.Body))
}
