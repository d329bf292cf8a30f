// Package errs centralizes the wrap-with-context idiom used throughout the
// node so error chains stay inspectable with errors.Is/errors.As.
package errs

import "fmt"

// Wrap adds context to err. It returns nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
