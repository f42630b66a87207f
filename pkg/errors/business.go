package errors

// BusinessError is a typed domain failure carrying a stable machine
// code callers can branch on. Sentinels built from it compare with
// errors.Is by identity, so services wrap them with %w as usual.
type BusinessError struct {
	Code    string
	Message string
}

func NewBusinessError(code string, message string) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
	}
}

func (e *BusinessError) Error() string {
	return e.Message
}
