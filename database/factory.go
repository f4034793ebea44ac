package database

import (
	"fmt"

	"github.com/gocrud/decor/internal/clients"
	"github.com/gocrud/decor/logging"
	"gorm.io/gorm"
)

// Factory 按名称持有数据库连接，容器销毁时关闭全部连接
type Factory struct {
	set    *clients.Set[*gorm.DB]
	logger logging.Logger
}

// NewFactory 创建数据库工厂
func NewFactory(logger logging.Logger) *Factory {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Factory{
		set:    clients.NewSet("database", closeDB),
		logger: logger.WithCategory("database"),
	}
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Register 打开数据库、配置连接池并执行自动迁移
func (f *Factory) Register(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	dialector, err := opts.dialector()
	if err != nil {
		return err
	}
	gormConfig := opts.GormConfig
	if gormConfig == nil {
		gormConfig = &gorm.Config{}
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return fmt.Errorf("failed to open database '%s': %w", opts.Name, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB for '%s': %w", opts.Name, err)
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(opts.MaxLifetime)

	if len(opts.AutoMigrate) > 0 {
		if err := db.AutoMigrate(opts.AutoMigrate...); err != nil {
			_ = sqlDB.Close()
			return fmt.Errorf("auto migrate failed for '%s': %w", opts.Name, err)
		}
	}

	if err := f.set.Add(opts.Name, db); err != nil {
		_ = sqlDB.Close()
		return err
	}
	f.logger.Info("数据库已注册", logging.F("name", opts.Name), logging.F("dialector", dialector.Name()))
	return nil
}

// Get 获取指定名称的数据库
func (f *Factory) Get(name string) (*gorm.DB, error) {
	return f.set.Get(name)
}

// Names 返回所有数据库名称
func (f *Factory) Names() []string {
	return f.set.Names()
}

// Dispose 关闭所有连接
func (f *Factory) Dispose() error {
	f.logger.Info("关闭数据库连接")
	return f.set.Close()
}
