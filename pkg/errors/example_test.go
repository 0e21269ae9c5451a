// Package errors provides examples of structured error handling in stratum.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/stratum/pkg/errors"
)

// Example demonstrates basic error creation.
func Example() {
	err := errors.New(errors.ErrorTypeValidation, "grain size must be positive").
		WithDetail("grain_size", -1)

	fmt.Println(err.Error())

	// Output:
	// validation: grain size must be positive
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeFile, "failed to read arrow file").
		WithDetail("path", "input.arrow")

	if errors.IsType(err, errors.ErrorTypeFile) {
		fmt.Println("This is a file error")
	}
	fmt.Println(err)

	// Output:
	// This is a file error
	// file: failed to read arrow file: unexpected EOF
}

// ExampleUnsupported shows the error a kernel reports for a rejected
// type/operator combination.
func ExampleUnsupported() {
	err := errors.Unsupported("product scan", "decimal64(2)")

	fmt.Println(err)
	fmt.Println(errors.IsType(err, errors.ErrorTypeUnsupported))
	fmt.Println(err.Details["type"])

	// Output:
	// unsupported: product scan is not supported for type decimal64(2)
	// true
	// decimal64(2)
}

// ExampleSizeMismatch shows the key/target row count check of the null filter.
func ExampleSizeMismatch() {
	err := errors.SizeMismatch("key table rows", 4, 6)

	fmt.Println(err)
	fmt.Println(errors.TypeOf(err))

	// Output:
	// size_mismatch: key table rows: expected at most 4, got 6
	// size_mismatch
}

// Example_errorChain shows how wrapped contexts are rendered.
func Example_errorChain() {
	err := allocate()
	if err != nil {
		err = errors.Wrap(err, errors.ErrorTypeInternal, "offsets pass failed").
			WithDetail("kernel", "from_integers")

		fmt.Println("Full error chain:", err)
	}

	// Output:
	// Full error chain: internal: offsets pass failed: allocation: memory limit exceeded
}

func allocate() error {
	return errors.New(errors.ErrorTypeAllocation, "memory limit exceeded").
		WithDetail("requested", 1<<30)
}

// ExampleIsType demonstrates checking error types through a wrap.
func ExampleIsType() {
	allocErr := errors.New(errors.ErrorTypeAllocation, "memory limit exceeded")
	wrappedErr := errors.Wrap(allocErr, errors.ErrorTypeInternal, "scan failed")

	fmt.Printf("Is allocation error: %v\n", errors.IsType(allocErr, errors.ErrorTypeAllocation))
	fmt.Printf("Wrapped error is internal: %v\n", errors.IsType(wrappedErr, errors.ErrorTypeInternal))
	fmt.Printf("Wrapped error is allocation: %v\n", errors.IsType(wrappedErr, errors.ErrorTypeAllocation))
	fmt.Printf("Plain error type: %q\n", errors.TypeOf(io.EOF))

	// Output:
	// Is allocation error: true
	// Wrapped error is internal: true
	// Wrapped error is allocation: false
	// Plain error type: ""
}
