package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisSink 基于Redis队列的审计实现
// 拒绝记录LPush到列表，由平台的审计消费端拉取入库
type RedisSink struct {
	client *redis.Client
	prefix string
}

// Config Redis配置
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

// NewRedisSink 创建Redis审计队列实例
func NewRedisSink(config *Config) *RedisSink {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})

	prefix := config.Prefix
	if prefix == "" {
		prefix = "ekko:audit"
	}

	return &RedisSink{
		client: client,
		prefix: prefix,
	}
}

// Close 关闭Redis连接
func (s *RedisSink) Close() error {
	return s.client.Close()
}

// Ping 测试Redis连接
func (s *RedisSink) Ping() error {
	ctx := context.Background()
	return s.client.Ping(ctx).Err()
}

// RecordDenial 将拒绝记录加入审计队列
func (s *RedisSink) RecordDenial(record *DenialRecord) error {
	ctx := context.Background()

	// 序列化记录
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化审计记录失败: %v", err)
	}

	// 加入队列（左侧入队）
	queueKey := s.prefix + ":denials"
	if err := s.client.LPush(ctx, queueKey, data).Err(); err != nil {
		return fmt.Errorf("审计记录入队失败: %v", err)
	}

	// 按拒绝码累计计数（用于监控面板查询）
	counterKey := s.prefix + ":counters"
	s.client.HIncrBy(ctx, counterKey, record.Code, 1)

	// 控制队列长度，保留最近10万条
	s.client.LTrim(ctx, queueKey, 0, 99999)

	return nil
}

// DenialCounters 获取按拒绝码的累计计数
func (s *RedisSink) DenialCounters() (map[string]string, error) {
	ctx := context.Background()
	return s.client.HGetAll(ctx, s.prefix+":counters").Result()
}

// RecentDenials 获取最近的拒绝记录
func (s *RedisSink) RecentDenials(limit int64) ([]DenialRecord, error) {
	ctx := context.Background()
	if limit <= 0 {
		limit = 50
	}

	raw, err := s.client.LRange(ctx, s.prefix+":denials", 0, limit-1).Result()
	if err != nil {
		return nil, err
	}

	records := make([]DenialRecord, 0, len(raw))
	for _, item := range raw {
		var record DenialRecord
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

var _ Sink = (*RedisSink)(nil)
