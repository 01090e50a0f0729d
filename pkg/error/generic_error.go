package error

// GenericError is the contract the recovery middleware uses to map panics to
// HTTP responses.
type GenericError interface {
	Error() string
	ErrCode() string
	StatusCode() int
}
