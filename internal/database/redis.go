package database

import (
	"ekko/pkg/audit"
	"ekko/pkg/config"
	"ekko/pkg/logger"
	"sync"
)

var (
	auditSinkInstance audit.Sink
	redisSinkInstance *audit.RedisSink
	auditSinkOnce     sync.Once
)

// GetAuditSink 获取审计Sink的单例实例
// 配置关闭审计队列时降级为日志审计
func GetAuditSink() audit.Sink {
	auditSinkOnce.Do(func() {
		cfg := config.GetConfig()
		if !cfg.Authz.AuditEnabled {
			auditSinkInstance = audit.NewLogSink(logger.GetLogger())
			return
		}
		redisSinkInstance = audit.NewRedisSink(&audit.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		auditSinkInstance = redisSinkInstance
	})
	return auditSinkInstance
}

// CloseAuditSink 关闭Redis连接
func CloseAuditSink() error {
	if redisSinkInstance != nil {
		return redisSinkInstance.Close()
	}
	return nil
}
