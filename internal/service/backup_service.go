package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/smms/internal/clock"
	"gorm.io/gorm"
)

const (
	backupPrefix = "smms-backup-"
	backupSuffix = ".sql"
)

var (
	ErrBackupNotFound    = errors.New("backup not found")
	ErrInvalidBackupName = errors.New("invalid backup name")
)

// backupTables 为导出顺序，posts 依赖 users
var backupTables = []string{"users", "posts"}

// BackupInfo 描述一个备份文件
type BackupInfo struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// BackupService 将数据库导出为 SQL 文本文件
type BackupService struct {
	db    *gorm.DB
	dir   string
	clock clock.Clock
}

// NewBackupService 创建 BackupService
func NewBackupService(gdb *gorm.DB, dir string, clk clock.Clock) *BackupService {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "backups"
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &BackupService{db: gdb, dir: dir, clock: clk}
}

// Create 导出全部表结构与数据，返回新备份文件信息
func (s *BackupService) Create(ctx context.Context) (*BackupInfo, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	now := s.clock.Now()
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "-- SMMS Database Backup\n-- Created: %s\n\n", now.Format(time.RFC3339))

	for _, table := range backupTables {
		if err := s.dumpTable(ctx, &buf, table); err != nil {
			return nil, storeError(err)
		}
	}

	name := backupPrefix + strings.ReplaceAll(now.Format("2006-01-02T15-04-05.000"), ".", "-") + backupSuffix
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return nil, fmt.Errorf("write backup: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat backup: %w", err)
	}
	return &BackupInfo{Name: name, Size: info.Size(), CreatedAt: now}, nil
}

// List 按修改时间倒序列出备份
func (s *BackupService) List() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []BackupInfo{}, nil
		}
		return nil, err
	}

	backups := make([]BackupInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), backupSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{Name: entry.Name(), Size: info.Size(), CreatedAt: info.ModTime()})
	}

	sort.Slice(backups, func(i, j int) bool {
		if backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].Name > backups[j].Name
		}
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// Path 返回备份文件的完整路径，拒绝目录穿越
func (s *BackupService) Path(name string) (string, error) {
	if name == "" || filepath.Base(name) != name || name == "." || name == ".." ||
		!strings.HasSuffix(name, backupSuffix) {
		return "", ErrInvalidBackupName
	}
	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrBackupNotFound
		}
		return "", err
	}
	if info.IsDir() {
		return "", ErrBackupNotFound
	}
	return path, nil
}

// Delete 删除指定备份
func (s *BackupService) Delete(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

func (s *BackupService) dumpTable(ctx context.Context, buf *bytes.Buffer, table string) error {
	gdb := s.db.WithContext(ctx)

	fmt.Fprintf(buf, "-- Table: %s\n", table)
	if gdb.Dialector.Name() == "sqlite" {
		var schema string
		if err := gdb.Raw("SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&schema).Error; err != nil {
			return err
		}
		if schema == "" {
			return nil
		}
		fmt.Fprintf(buf, "DROP TABLE IF EXISTS %s;\n%s;\n\n", table, schema)
	}

	rows, err := gdb.Table(table).Rows()
	if err != nil {
		return err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return err
	}

	values := make([]interface{}, len(columns))
	pointers := make([]interface{}, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	wrote := false
	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return err
		}
		literals := make([]string, len(values))
		for i, value := range values {
			literals[i] = sqlLiteral(value)
		}
		fmt.Fprintf(buf, "INSERT INTO %s (%s) VALUES (%s);\n", table, strings.Join(columns, ", "), strings.Join(literals, ", "))
		wrote = true
	}
	if wrote {
		buf.WriteString("\n")
	}
	return rows.Err()
}

func sqlLiteral(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case time.Time:
		return quoteSQL(v.Format("2006-01-02 15:04:05.999999999-07:00"))
	case []byte:
		return quoteSQL(string(v))
	default:
		return quoteSQL(fmt.Sprint(v))
	}
}

func quoteSQL(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
