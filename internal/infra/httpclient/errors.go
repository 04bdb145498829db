package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

// RequestFailedError — окончательная ошибка запроса: статус >= 400 без повтора
// либо исчерпанные попытки.
type RequestFailedError struct {
	Status   int // 0 — ответа не было (сеть, таймаут)
	Method   string
	URL      string
	Body     string // обрезанное тело ответа
	Attempts int
	Err      error
}

func (e *RequestFailedError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Method, e.URL)
	if e.Status > 0 {
		msg = fmt.Sprintf("%d %s", e.Status, msg)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" (attempts=%d)", e.Attempts)
	}
	if e.Body != "" {
		msg += " -> " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RequestFailedError) Unwrap() error { return e.Err }

// StatusOf возвращает HTTP-статус из цепочки ошибок или 0.
func StatusOf(err error) int {
	var rf *RequestFailedError
	if errors.As(err, &rf) {
		return rf.Status
	}
	return 0
}

// BodyOf возвращает сохранённое тело ответа из цепочки ошибок.
func BodyOf(err error) string {
	var rf *RequestFailedError
	if errors.As(err, &rf) {
		return rf.Body
	}
	return ""
}

func isTransient(err error) bool {
	var rf *RequestFailedError
	if !errors.As(err, &rf) {
		return false
	}
	// сеть, таймаут или обрыв при чтении тела (статус уже мог прийти);
	// битый JSON несёт тело и сюда не попадает
	if rf.Err != nil && rf.Body == "" {
		return true
	}
	switch rf.Status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
