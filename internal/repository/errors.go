package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// pgUniqueViolation Postgres 唯一约束冲突 SQLSTATE
const pgUniqueViolation = "23505"

// ==================== 存储错误分类 ====================

// StorageConflictError 主键冲突 (并发写同一 id)
// 属于预期情况，由调用方吞掉并按“已存在”处理
type StorageConflictError struct {
	Table string
	Key   string
	Err   error
}

func (e *StorageConflictError) Error() string {
	return fmt.Sprintf("%s: duplicate key %s: %v", e.Table, e.Key, e.Err)
}

func (e *StorageConflictError) Unwrap() error { return e.Err }

// StorageFatalError 连接断开、表结构不匹配等，对当前任务是致命的
type StorageFatalError struct {
	Table string
	Op    string
	Err   error
}

func (e *StorageFatalError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Table, e.Op, e.Err)
}

func (e *StorageFatalError) Unwrap() error { return e.Err }

// IsConflict 是否主键冲突
func IsConflict(err error) bool {
	var ce *StorageConflictError
	return errors.As(err, &ce)
}

// IsFatal 是否致命存储错误
func IsFatal(err error) bool {
	var fe *StorageFatalError
	return errors.As(err, &fe)
}

// isDuplicateKey 兼容 GORM 翻译后的错误和 pgx 原始错误
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// classify 把驱动错误归类为 Conflict / Fatal
func classify(table, op, key string, err error) error {
	if err == nil {
		return nil
	}
	if isDuplicateKey(err) {
		return &StorageConflictError{Table: table, Key: key, Err: err}
	}
	return &StorageFatalError{Table: table, Op: op, Err: err}
}

// ==================== 幂等写入原语 ====================

// insertIfAbsent 冲突容忍插入：ON CONFLICT DO NOTHING
// 返回 true 表示本次真正写入；false 表示行已存在
// 预检查 (existsByID) 和插入之间存在竞态，正确性只依赖这里
func insertIfAbsent(ctx context.Context, db *gorm.DB, table, key string, row interface{}) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row)
	if res.Error != nil {
		return false, classify(table, "insert", key, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// existsByID 按主键判断是否存在
func existsByID(ctx context.Context, db *gorm.DB, table string, row interface{}, id interface{}) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(row).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, &StorageFatalError{Table: table, Op: "exists", Err: err}
	}
	return count > 0, nil
}

// ==================== 分页 ====================

// Pagination 通用分页参数
type Pagination struct {
	Page     int
	PageSize int
}

// Normalize 页码从 1 开始，单页最多 200 条
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 200 {
		p.PageSize = 200
	}
	return p
}

// Offset 偏移量
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}
