// Package errors defines the error taxonomy shared by the client, the manager
// and the HTTP transport. Errors are wrapped with Wrap and matched with
// Contains so callers can classify a failure without string matching.
package errors

import smqerrors "github.com/absmach/supermq/pkg/errors"

var (
	// ErrConfiguration indicates an invalid deployment setting. Fatal at startup.
	ErrConfiguration = smqerrors.New("invalid configuration")

	// ErrTransport indicates a network failure or a malformed response.
	ErrTransport = smqerrors.New("transport failure")

	// ErrVersionConflict indicates that a submission was computed against a
	// model version that is no longer accepting contributions.
	ErrVersionConflict = smqerrors.New("model version conflict")

	// ErrCrypto indicates a decryption or authentication failure.
	ErrCrypto = smqerrors.New("share decryption failed")

	// ErrAggregationPrecondition indicates that a batch cannot be aggregated.
	ErrAggregationPrecondition = smqerrors.New("aggregation precondition violated")

	ErrInvalidParams     = smqerrors.New("invalid parameters")
	ErrInvalidData       = smqerrors.New("invalid data")
	ErrNotFound          = smqerrors.New("entity not found")
	ErrUnexpectedStatus  = smqerrors.New("unexpected response status")
	ErrInvalidTransition = smqerrors.New("invalid state transition")
)

// Wrap returns err wrapped by wrapper.
func Wrap(wrapper, err error) error {
	return smqerrors.Wrap(wrapper, err)
}

// Contains reports whether err contains target anywhere in its chain.
func Contains(err, target error) bool {
	return smqerrors.Contains(err, target)
}

// New returns a new error with the given message.
func New(text string) error {
	return smqerrors.New(text)
}
