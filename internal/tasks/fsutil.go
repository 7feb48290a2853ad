package tasks

import (
	"io"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

func readSource(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read source file").
			WithContext("path", path).
			Build()
	}
	return data, nil
}

func writeOutput(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create output directory").
			WithContext("path", filepath.Dir(path)).
			Build()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write output file").
			WithContext("path", path).
			Build()
	}
	return nil
}

// copyFile copies src to dst, keeping the source permission bits.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "open source file").
			WithContext("path", src).
			Build()
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "stat source file").
			WithContext("path", src).
			Build()
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create output directory").
			WithContext("path", filepath.Dir(dst)).
			Build()
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create output file").
			WithContext("path", dst).
			Build()
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "copy file").
			WithContext("path", dst).
			Build()
	}
	if err := out.Close(); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "close output file").
			WithContext("path", dst).
			Build()
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "set file mode").
			WithContext("path", dst).
			Build()
	}
	return nil
}
