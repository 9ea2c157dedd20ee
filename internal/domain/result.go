package domain

// Result is the envelope every operation is reported in.
type Result[T any] struct {
	Result    *T     `json:"result"`
	IsError   bool   `json:"isError"`
	Message   string `json:"message"`
	Exception string `json:"exception,omitempty"`
}

func OKResult[T any](v T, message string) Result[T] {
	return Result[T]{Result: &v, Message: message}
}

func ErrorResult[T any](message, exception string) Result[T] {
	return Result[T]{IsError: true, Message: message, Exception: exception}
}
