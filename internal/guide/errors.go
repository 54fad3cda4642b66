package guide

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported はこのプラットフォームでドライバーが使えないことを表す
	ErrUnsupported = errors.New("このプラットフォームではサポートされていません")

	// ErrStreamOpen はストリームが既に開かれていることを表す
	ErrStreamOpen = errors.New("ストリームは既に開かれています")
)

// Error はSDK関数が ERROR_NO 以外を返したことを表す
type Error struct {
	Op   string // SDK関数名
	Code Code   // 戻り値
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error %d (%s)", e.Op, int32(e.Code), e.Code)
}

// check は戻り値を検査し、失敗時は *Error を返す
func check(op string, ret int32) error {
	if Code(ret) != CodeOK {
		return &Error{Op: op, Code: Code(ret)}
	}
	return nil
}

// IsCode はerrが指定コードの *Error かどうかを返す
func IsCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
