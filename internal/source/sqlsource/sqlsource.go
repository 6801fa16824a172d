// Package sqlsource reads device tracks from the track_points table.
package sqlsource

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/fleetpulse/trackmap/internal/loader"
	"github.com/fleetpulse/trackmap/internal/model"
	"github.com/fleetpulse/trackmap/pkg/core"
)

// Source is a read-only chunk fetcher over a GORM connection.
type Source struct {
	db *gorm.DB
}

var (
	_ loader.ChunkFetcher = (*Source)(nil)
	_ loader.PointCounter = (*Source)(nil)
)

// New creates a source reading from db.
func New(db *gorm.DB) *Source {
	return &Source{db: db}
}

// FetchChunk returns up to limit points of deviceID starting at offset, in
// capture order.
func (s *Source) FetchChunk(ctx context.Context, deviceID string, offset, limit int) ([]core.Point, error) {
	var rows []model.TrackPoint
	err := s.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("seq ASC").Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query track points: %w", err)
	}

	points := make([]core.Point, len(rows))
	for i, r := range rows {
		points[i] = r.ToCore()
	}
	return points, nil
}

// CountPoints returns the number of stored points of deviceID.
func (s *Source) CountPoints(ctx context.Context, deviceID string) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.TrackPoint{}).
		Where("device_id = ?", deviceID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count track points: %w", err)
	}
	return int(count), nil
}
