package database

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Options 数据库配置选项
type Options struct {
	Name string `json:"name" yaml:"name"`
	// Dialector 为空时按 Driver 和 DSN 创建
	Dialector    gorm.Dialector `json:"-" yaml:"-"`
	Driver       string         `json:"driver" yaml:"driver"`
	DSN          string         `json:"dsn" yaml:"dsn"`
	GormConfig   *gorm.Config   `json:"-" yaml:"-"`
	MaxIdleConns int            `json:"maxIdleConns" yaml:"maxIdleConns"`
	MaxOpenConns int            `json:"maxOpenConns" yaml:"maxOpenConns"`
	MaxLifetime  time.Duration  `json:"maxLifetime" yaml:"maxLifetime"`
	// AutoMigrate 是打开后需要自动迁移的模型
	AutoMigrate []any `json:"-" yaml:"-"`
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string) *Options {
	return &Options{
		Name:         name,
		MaxIdleConns: 10,
		MaxOpenConns: 100,
		MaxLifetime:  time.Hour,
	}
}

// Validate 验证配置
func (o *Options) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if o.Dialector == nil && o.DSN == "" {
		return fmt.Errorf("database dialector or dsn is required")
	}
	if o.Dialector == nil {
		if _, err := dialectorFor(o.Driver, o.DSN); err != nil {
			return err
		}
	}
	return nil
}

func (o *Options) dialector() (gorm.Dialector, error) {
	if o.Dialector != nil {
		return o.Dialector, nil
	}
	return dialectorFor(o.Driver, o.DSN)
}

// dialectorFor 按驱动名创建 Dialector，目前内置 sqlite
func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "", "sqlite", "sqlite3":
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported database driver '%s'", driver)
}
