// Package run persists pipeline run records.
package run

import (
	"context"
	"sort"

	"github.com/Taichi-iskw/yt-digest/internal/model"
)

// Repository defines operations for Run persistence
type Repository interface {
	Create(ctx context.Context, run *model.Run) error
	Get(ctx context.Context, id string) (*model.Run, error)
	// Latest returns the most recently created run
	Latest(ctx context.Context) (*model.Run, error)
	// List returns runs newest first
	List(ctx context.Context, limit, offset int) ([]*model.Run, error)
	Update(ctx context.Context, run *model.Run) error
}

// DefaultListLimit applies when List is called with a non-positive limit
const DefaultListLimit = 50

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// sortNewestFirst orders runs by creation time, breaking ties by id
func sortNewestFirst(runs []*model.Run) {
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID > runs[j].ID
	})
}

func page(runs []*model.Run, limit, offset int) []*model.Run {
	if offset >= len(runs) {
		return []*model.Run{}
	}
	end := min(offset+limit, len(runs))
	return runs[offset:end]
}
