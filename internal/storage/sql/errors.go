package sql

import (
	"errors"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"tempinbox/backend/internal/domain"
)

// isUniqueViolation 判断是否为唯一约束冲突。
// TranslateError 会把大部分情况转换成 gorm.ErrDuplicatedKey，这里兜底识别各驱动的原始错误。
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}

	return isSQLiteUniqueViolation(err)
}

// notFound 将 gorm.ErrRecordNotFound 映射为 domain.ErrNotFound
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}
