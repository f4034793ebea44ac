package mongodb

import (
	"fmt"
	"time"
)

// Options MongoDB 客户端配置选项
type Options struct {
	Name        string        `json:"name" yaml:"name"`
	URI         string        `json:"uri" yaml:"uri"`
	Username    string        `json:"username" yaml:"username"`
	Password    string        `json:"password" yaml:"password"`
	MaxPoolSize uint64        `json:"maxPoolSize" yaml:"maxPoolSize"`
	MinPoolSize uint64        `json:"minPoolSize" yaml:"minPoolSize"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
	// Ping 为 true 时创建客户端后检查连接
	Ping bool `json:"ping" yaml:"ping"`
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name, uri string) *Options {
	return &Options{
		Name:        name,
		URI:         uri,
		MaxPoolSize: 100,
		MinPoolSize: 5,
		Timeout:     10 * time.Second,
	}
}

// Validate 验证配置
func (o *Options) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("mongo client name is required")
	}
	if o.URI == "" {
		return fmt.Errorf("mongo uri is required")
	}
	if o.MinPoolSize > o.MaxPoolSize && o.MaxPoolSize > 0 {
		return fmt.Errorf("mongo min pool size exceeds max pool size")
	}
	return nil
}
