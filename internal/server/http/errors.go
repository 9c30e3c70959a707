package http

import (
	"errors"

	"paperpost-orchestrator/internal/store"
)

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
