package sql

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"tempinbox/backend/internal/config"
	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/storage"
)

// 支持的数据库类型
const (
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
	DialectSQLite   = "sqlite"
)

// Store SQL 数据库存储实现（支持 PostgreSQL、MySQL 5.7+ 与 SQLite）
type Store struct {
	db      *gorm.DB
	sqlDB   *sql.DB
	pool    *pgxpool.Pool // 仅 PostgreSQL
	dialect string
	log     *zap.Logger

	seq atomic.Int64
}

var _ storage.Store = (*Store)(nil)

// Open 根据配置打开数据库并执行迁移
func Open(cfg *config.DatabaseConfig, log *zap.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	switch cfg.Type {
	case DialectPostgres:
		poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to parse database DSN: %w", err)
		}
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
		poolConfig.MaxConnIdleTime = 30 * time.Minute

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}

		store, err := NewStoreWithDialector(DialectPostgres, postgres.New(postgres.Config{
			Conn: stdlib.OpenDBFromPool(pool),
		}), log)
		if err != nil {
			pool.Close()
			return nil, err
		}
		store.pool = pool
		return store, nil

	case DialectMySQL:
		mysqlCfg, err := gomysql.ParseDSN(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to parse database DSN: %w", err)
		}
		// 时间统一按 UTC 存取；ClientFoundRows 让 UPDATE 的影响行数包含值未变化的行
		mysqlCfg.ParseTime = true
		mysqlCfg.Loc = time.UTC
		mysqlCfg.ClientFoundRows = true

		store, err := NewStoreWithDialector(DialectMySQL, mysql.Open(mysqlCfg.FormatDSN()), log)
		if err != nil {
			return nil, err
		}
		store.configurePool(cfg)
		return store, nil

	case DialectSQLite:
		store, err := NewStoreWithDialector(DialectSQLite, sqlite.Open(cfg.DSN), log)
		if err != nil {
			return nil, err
		}
		// SQLite 同一时刻只允许一个写者
		store.sqlDB.SetMaxOpenConns(1)
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported database type: %s (supported: postgres, mysql, sqlite)", cfg.Type)
	}
}

// NewStoreWithDialector 使用指定的GORM dialector创建存储实例
func NewStoreWithDialector(dialect string, dialector gorm.Dialector, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	store := &Store{
		db:      db,
		sqlDB:   sqlDB,
		dialect: dialect,
		log:     log,
	}
	store.seq.Store(time.Now().UnixNano())

	if err := store.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Info("database connected", zap.String("dialect", dialect))
	return store, nil
}

func (s *Store) configurePool(cfg *config.DatabaseConfig) {
	s.sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	s.sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	s.sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
}

// migrate 自动迁移数据库表结构
func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&domain.TemporaryEmail{},
		&domain.Message{},
		&domain.Attachment{},
		&domain.UserPlan{},
		&domain.CustomDomain{},
	)
}

// nextSeq 进程内单调递增、跨进程大致有序的插入序号
func (s *Store) nextSeq() int64 {
	return s.seq.Add(1)
}

// forUpdate 在支持行锁的数据库上加 SELECT ... FOR UPDATE
func (s *Store) forUpdate(tx *gorm.DB) *gorm.DB {
	if s.dialect == DialectSQLite {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	err := s.sqlDB.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

// Health 检查数据库健康状态
func (s *Store) Health(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}
