package audit

import "time"

// DenialRecord 授权拒绝审计记录
type DenialRecord struct {
	EventID             string                 `json:"event_id"`
	UserID              uint                   `json:"user_id"`
	Username            string                 `json:"username,omitempty"`
	OrganizationID      *uint                  `json:"organization_id"` // null表示全局上下文
	Operation           string                 `json:"operation"`       // 形如 "GET /api/v1/roles"
	RequiredPermissions []string               `json:"required_permissions,omitempty"`
	Code                string                 `json:"code"`   // 机器可读拒绝码
	Reason              string                 `json:"reason"` // 人类可读原因
	ClientIP            string                 `json:"client_ip,omitempty"`
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
	OccurredAt          time.Time              `json:"occurred_at"`
}

// Sink 审计落地接口
// 拒绝记录的写入失败不允许影响授权结果，由调用方记日志后吞掉
type Sink interface {
	RecordDenial(record *DenialRecord) error
}
