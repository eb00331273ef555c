package audit

import (
	"github.com/sirupsen/logrus"
)

// LogSink 日志审计实现（未配置Redis时的降级方案）
type LogSink struct {
	logger *logrus.Logger
}

// NewLogSink 创建日志审计实例
func NewLogSink(logger *logrus.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// RecordDenial 以结构化日志记录拒绝
func (s *LogSink) RecordDenial(record *DenialRecord) error {
	s.logger.WithFields(logrus.Fields{
		"event_id":        record.EventID,
		"user_id":         record.UserID,
		"organization_id": record.OrganizationID,
		"operation":       record.Operation,
		"permissions":     record.RequiredPermissions,
		"deny_code":       record.Code,
		"client_ip":       record.ClientIP,
	}).Warn("授权拒绝: " + record.Reason)
	return nil
}

var _ Sink = (*LogSink)(nil)
