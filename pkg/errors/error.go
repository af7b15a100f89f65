package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/iceymoss/go-solo/pkg/xerr"
)

type CodeMsg struct {
	Code int    // 错误码
	Msg  string // 错误消息
	Err  error  // 原始错误
}

var (
	// ErrNotFound 记录不存在（仅用于写操作，读操作用 nil 表示不存在）
	ErrNotFound = New(xerr.ErrNotFound, "article not found")
	// ErrValidation 唯一性或必填字段校验失败，写入不会部分生效
	ErrValidation = New(xerr.ErrInvalidInput, "article validation failed")
	// ErrTransaction 事务提交失败或写操作不在事务内
	ErrTransaction = New(xerr.DB_TX_ERROR, "transaction failed")
)

// 实现 error 接口
func (e *CodeMsg) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("code=%d, msg=%s, err=%v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("code=%d, msg=%s", e.Code, e.Msg)
}

func (e *CodeMsg) Unwrap() error {
	return e.Err
}

// Is 按错误码比较，errors.Is(err, ErrValidation) 对任意同码错误成立
func (e *CodeMsg) Is(target error) bool {
	t, ok := target.(*CodeMsg)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New 构造函数
func New(code int, msg string) error {
	return &CodeMsg{Code: code, Msg: msg}
}

// Wrap 携带原始错误构造
func Wrap(code int, msg string, err error) error {
	return &CodeMsg{Code: code, Msg: msg, Err: err}
}

func NotFound(msg string) error {
	return New(xerr.ErrNotFound, msg)
}

func Validation(msg string) error {
	return New(xerr.ErrInvalidInput, msg)
}

func Transaction(msg string, err error) error {
	return Wrap(xerr.DB_TX_ERROR, msg, err)
}

// Code 取出错误链上第一个 CodeMsg 的错误码，没有则返回 0
func Code(err error) int {
	var cm *CodeMsg
	if stdErrors.As(err, &cm) {
		return cm.Code
	}
	return 0
}
