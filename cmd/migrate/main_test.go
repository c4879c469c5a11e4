package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	t.Run("跳过注释并按分号拆分", func(t *testing.T) {
		stmts := splitStatements("-- 注释\nCREATE TABLE a (id INT);\n\n-- 第二条\nCREATE INDEX i ON a (id);\n")
		require.Len(t, stmts, 2)
		assert.Equal(t, "CREATE TABLE a (id INT);", stmts[0])
		assert.Equal(t, "CREATE INDEX i ON a (id);", stmts[1])
	})

	t.Run("字符串中的分号不拆分", func(t *testing.T) {
		stmts := splitStatements("INSERT INTO a VALUES ('x;y');\nSELECT 1;")
		require.Len(t, stmts, 2)
		assert.Contains(t, stmts[0], "'x;y'")
	})

	t.Run("末尾缺少分号的语句保留", func(t *testing.T) {
		stmts := splitStatements("SELECT 1")
		assert.Equal(t, []string{"SELECT 1"}, stmts)
	})
}

func TestLoadStatements(t *testing.T) {
	for _, dbType := range []string{"postgres", "mysql"} {
		up, err := loadStatements(dbType, "up")
		require.NoError(t, err, dbType)
		down, err := loadStatements(dbType, "down")
		require.NoError(t, err, dbType)

		joined := strings.Join(up, "\n")
		for _, table := range []string{"temporary_emails", "messages", "attachments", "user_plans", "custom_domains"} {
			assert.Contains(t, joined, "CREATE TABLE IF NOT EXISTS "+table, dbType)
		}
		assert.Contains(t, joined, "idx_email_delivery", dbType)
		assert.Len(t, down, 5, dbType)
	}

	_, err := loadStatements("sqlite", "up")
	assert.Error(t, err)
	_, err = loadStatements("postgres", "sideways")
	assert.Error(t, err)
}
