package services

import (
	"ekko/pkg/logger"
	"fmt"

	"github.com/robfig/cron/v3"
)

// AssignmentCleanupScheduler 过期授权清理调度器
// 授权引擎在判定时已把过期授权视为不存在，该任务只负责把过期行翻为非活跃
type AssignmentCleanupScheduler struct {
	assignments *AssignmentService
	cron        *cron.Cron
	cronSpec    string
	running     bool
}

// NewAssignmentCleanupScheduler 创建清理调度器
func NewAssignmentCleanupScheduler(assignments *AssignmentService, cronSpec string) *AssignmentCleanupScheduler {
	return &AssignmentCleanupScheduler{
		assignments: assignments,
		cron:        cron.New(),
		cronSpec:    cronSpec,
	}
}

// Start 启动调度器
func (s *AssignmentCleanupScheduler) Start() error {
	if s.running {
		return fmt.Errorf("调度器已经在运行")
	}

	_, err := s.cron.AddFunc(s.cronSpec, s.runOnce)
	if err != nil {
		return fmt.Errorf("无效的cron表达式 %s: %v", s.cronSpec, err)
	}

	s.cron.Start()
	s.running = true

	logger.GetLogger().Infof("过期授权清理调度器启动成功，调度规则: %s", s.cronSpec)
	return nil
}

// Stop 停止调度器
func (s *AssignmentCleanupScheduler) Stop() {
	if !s.running {
		return
	}

	logger.GetLogger().Info("停止过期授权清理调度器")
	s.cron.Stop()
	s.running = false
}

// runOnce 执行一次清理
func (s *AssignmentCleanupScheduler) runOnce() {
	count, err := s.assignments.CleanupExpired()
	if err != nil {
		logger.GetLogger().Errorf("清理过期授权失败: %v", err)
		return
	}
	if count > 0 {
		logger.GetLogger().Infof("已回收 %d 条过期授权", count)
	}
}
