package postgres

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"travel/internal/repository"
)

func TestMapWriteError(t *testing.T) {
	t.Parallel()

	plain := errors.New("connection refused")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unique violation", &pq.Error{Code: "23505"}, repository.ErrDuplicate},
		{"deadlock", &pq.Error{Code: "40P01", Message: "deadlock detected"}, repository.ErrVersionConflict},
		{"serialization failure", &pq.Error{Code: "40001"}, repository.ErrVersionConflict},
		{"other driver error", &pq.Error{Code: "23503"}, nil},
		{"non-driver error", plain, plain},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := mapWriteError(tt.err)
			if tt.want == nil {
				assert.Same(t, tt.err, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}
