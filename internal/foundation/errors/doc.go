// Package errors provides the classified error primitives used across assetbuilder.
//
// Every failure that leaves a task carries a category that says where it came
// from (a source that could not be read, an asset that could not be transformed,
// an output that could not be written) and a severity that says whether the
// enclosing flow must stop. The CLI adapter maps categories to exit codes.
//
// Example usage:
//
//	err := errors.WrapError(cause, errors.CategoryTransform, "compile stylesheet").
//		WithContext("path", entry).
//		Build()
package errors
