package etcd

import (
	"fmt"
	"time"
)

// Options etcd 客户端配置选项
type Options struct {
	Name               string        `json:"name" yaml:"name"`
	Endpoints          []string      `json:"endpoints" yaml:"endpoints"`
	DialTimeout        time.Duration `json:"dialTimeout" yaml:"dialTimeout"`
	Username           string        `json:"username" yaml:"username"`
	Password           string        `json:"password" yaml:"password"`
	AutoSyncInterval   time.Duration `json:"autoSyncInterval" yaml:"autoSyncInterval"`
	MaxCallSendMsgSize int           `json:"maxCallSendMsgSize" yaml:"maxCallSendMsgSize"`
	MaxCallRecvMsgSize int           `json:"maxCallRecvMsgSize" yaml:"maxCallRecvMsgSize"`
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string) *Options {
	return &Options{
		Name:        name,
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: 5 * time.Second,
	}
}

// Validate 验证配置
func (o *Options) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("etcd client name is required")
	}
	if len(o.Endpoints) == 0 {
		return fmt.Errorf("etcd endpoints are required")
	}
	if o.DialTimeout <= 0 {
		return fmt.Errorf("etcd dial timeout must be positive")
	}
	return nil
}
