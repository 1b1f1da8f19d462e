package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pay-gateway-api/internal/constant"
	"pay-gateway-api/internal/dto"
	"pay-gateway-api/internal/engine"
	"pay-gateway-api/internal/utils"
)

type RefundHandler struct{ eng *engine.Engine }

func NewRefundHandler(eng *engine.Engine) *RefundHandler { return &RefundHandler{eng: eng} }

func (h *RefundHandler) Create(c *gin.Context) {
	var req dto.RefundReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.CustomError(constant.CodeInvalidParams, err.Error()))
		return
	}

	resp, err := h.eng.RequestRefund(c.Request.Context(), req)
	if err != nil {
		status, code := mapEngineError(err)
		c.JSON(status, utils.Error(code))
		return
	}
	c.JSON(http.StatusOK, utils.Success(resp))
}
