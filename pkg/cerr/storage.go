package cerr

import (
	"errors"
	"fmt"

	"github.com/kazz187/orchestra/pkg/storage"
)

func WrapStorageReadError(target string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NewError(NotFound, fmt.Sprintf("%s not found", target), err)
	}
	return NewError(Internal, "server error", fmt.Errorf("failed to read %s: %w", target, err))
}

func WrapStorageWriteError(target string, err error) error {
	if errors.Is(err, storage.ErrExists) {
		return NewError(AlreadyExists, fmt.Sprintf("%s already exists", target), err)
	}
	return NewError(Internal, "server error", fmt.Errorf("failed to write %s: %w", target, err))
}

func WrapDecodeError(target string, err error) error {
	return NewError(DataLoss, fmt.Sprintf("%s is corrupted", target), fmt.Errorf("failed to decode %s: %w", target, err))
}
