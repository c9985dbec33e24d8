package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound 记录不存在或不属于当前用户
	ErrNotFound = errors.New("记录不存在")
	// ErrNoData 报表筛选结果为空
	ErrNoData = errors.New("no data for selection")
	// ErrComputation 预算已花费金额计算失败（严格模式）
	ErrComputation = errors.New("预算计算失败")
)

// ValidationError 字段级校验错误
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError 创建单字段校验错误
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Add 追加字段错误，同一字段保留第一条
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = message
	}
}

// Empty 没有任何字段错误
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// Err 无字段错误时返回 nil
func (e *ValidationError) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "参数校验失败: " + strings.Join(parts, "; ")
}

// PersistenceError 数据库写入失败，事务已回滚
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ReportError 报表序列化失败
type ReportError struct {
	Format string
	Err    error
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("生成 %s 报表失败: %v", e.Format, e.Err)
}

func (e *ReportError) Unwrap() error {
	return e.Err
}

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
