package receipt

import "errors"

var (
	// ErrNoKey is returned when neither an RSA nor an HMAC signing resource
	// is configured.
	ErrNoKey = errors.New("receipt: no signing key configured")

	// ErrUnsigned is returned when a receipt carries no token.
	ErrUnsigned = errors.New("receipt: missing token")

	// ErrTampered is returned when the receipt body no longer matches the
	// digest sealed into its token.
	ErrTampered = errors.New("receipt: body does not match signed digest")
)
