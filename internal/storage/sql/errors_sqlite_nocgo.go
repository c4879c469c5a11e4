//go:build !cgo

package sql

// 无 cgo 时 go-sqlite3 为桩实现，不会产生 sqlite3.Error。
func isSQLiteUniqueViolation(err error) bool {
	return false
}
