package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// migrationsFS 000001 建薪酬输入表（只读镜像），000002 建异常台账与信誉分表
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationsTable 与薪酬系统共库时避免冲突
const migrationsTable = "payguard_schema_migrations"

// RunMigrations 应用所有未执行的迁移
// dirty 状态直接报错，需人工 force 后再启动
func RunMigrations(db *sql.DB, logger *zap.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("加载迁移文件失败: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("创建迁移驱动失败: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("初始化迁移实例失败: %w", err)
	}

	if version, dirty, err := m.Version(); err == nil && dirty {
		return fmt.Errorf("数据库迁移处于 dirty 状态 (version=%d)", version)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("执行迁移失败: %w", err)
	}

	version, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("读取迁移版本失败: %w", err)
	}
	logger.Info("数据库迁移完成", zap.Uint("version", version), zap.String("table", migrationsTable))
	return nil
}
