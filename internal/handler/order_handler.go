package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pay-gateway-api/internal/adapter"
	"pay-gateway-api/internal/constant"
	"pay-gateway-api/internal/dto"
	"pay-gateway-api/internal/engine"
	"pay-gateway-api/internal/utils"
)

type OrderHandler struct{ eng *engine.Engine }

func NewOrderHandler(eng *engine.Engine) *OrderHandler { return &OrderHandler{eng: eng} }

func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.CustomError(constant.CodeInvalidParams, err.Error()))
		return
	}
	req.ClientIP = utils.GetRealClientIP(c)

	resp, err := h.eng.CreateOrder(c.Request.Context(), req)
	if err != nil {
		status, code := mapEngineError(err)
		c.JSON(status, utils.Error(code))
		return
	}
	c.JSON(http.StatusOK, utils.Success(resp))
}

func (h *OrderHandler) Query(c *gin.Context) {
	var req dto.QueryOrderReq
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.CustomError(constant.CodeInvalidParams, err.Error()))
		return
	}

	vo, err := h.eng.QueryOrder(c.Request.Context(), req)
	if err != nil {
		status, code := mapEngineError(err)
		c.JSON(status, utils.Error(code))
		return
	}
	c.JSON(http.StatusOK, utils.Success(vo))
}

// mapEngineError 引擎错误到对外错误码的映射
func mapEngineError(err error) (httpStatus, code int) {
	var rejected *adapter.RejectedError
	switch {
	case errors.Is(err, engine.ErrValidation):
		return http.StatusBadRequest, constant.CodeInvalidParams
	case errors.Is(err, engine.ErrUnsupportedChannel):
		return http.StatusBadRequest, constant.CodeChannelNotFound
	case errors.Is(err, engine.ErrConcurrentRequest):
		return http.StatusConflict, constant.CodeConcurrentRequest
	case errors.Is(err, engine.ErrConsistencyViolation):
		return http.StatusConflict, constant.CodeConsistencyViolation
	case errors.Is(err, engine.ErrInvalidRefundAmount):
		return http.StatusBadRequest, constant.CodeRefundAmountError
	case errors.Is(err, engine.ErrOrderNotFound):
		return http.StatusNotFound, constant.CodeOrderNotFound
	case errors.Is(err, engine.ErrTxNotFound), errors.Is(err, engine.ErrRefundNotFound):
		return http.StatusNotFound, constant.CodeOrderNotFound
	case errors.As(err, &rejected):
		return http.StatusOK, constant.CodePaymentRejected
	default:
		return http.StatusInternalServerError, constant.CodeSystemError
	}
}
