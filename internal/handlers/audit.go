package handlers

import (
	"ekko/internal/database"
	"ekko/pkg/audit"
	"ekko/pkg/response"
	"strconv"

	"github.com/gin-gonic/gin"
)

// AuditHandler 授权拒绝审计查询
type AuditHandler struct{}

func NewAuditHandler() *AuditHandler {
	return &AuditHandler{}
}

// redisSink 审计查询仅在Redis存储启用时可用
func (h *AuditHandler) redisSink() *audit.RedisSink {
	sink, ok := database.GetAuditSink().(*audit.RedisSink)
	if !ok {
		return nil
	}
	return sink
}

// RecentDenials 最近的拒绝记录（新到旧）
func (h *AuditHandler) RecentDenials(c *gin.Context) {
	sink := h.redisSink()
	if sink == nil {
		response.BadRequest(c, "审计存储未启用")
		return
	}

	limit := int64(50)
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.ParseInt(limitStr, 10, 64)
		if err != nil || parsed < 1 || parsed > 1000 {
			response.BadRequest(c, "limit必须在1-1000之间")
			return
		}
		limit = parsed
	}

	records, err := sink.RecentDenials(limit)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, records)
}

// DenialCounters 按拒绝码聚合的计数
func (h *AuditHandler) DenialCounters(c *gin.Context) {
	sink := h.redisSink()
	if sink == nil {
		response.BadRequest(c, "审计存储未启用")
		return
	}

	counters, err := sink.DenialCounters()
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, counters)
}
