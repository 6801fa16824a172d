package model

import (
	"time"

	"github.com/fleetpulse/trackmap/pkg/core"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&TrackPoint{},
}

////////////////////////
// TRACK MODELS
////////////////////////

// TrackPoint is one stored GPS fix of a device. Seq orders the fixes of a
// device in capture order.
type TrackPoint struct {
	ID       uint      `json:"id" gorm:"primarykey;autoIncrement"`
	DeviceID string    `json:"deviceId" gorm:"size:64;index:idx_trackpoint_device_seq,priority:1"`
	Seq      int       `json:"seq" gorm:"index:idx_trackpoint_device_seq,priority:2"`
	Time     time.Time `json:"time"`
	Lat      float64   `json:"lat"`
	Lng      float64   `json:"lng"`
	Speed    *float64  `json:"speed"`
	Accuracy *float64  `json:"accuracy"`
}

func (*TrackPoint) TableName() string {
	return "track_points"
}

// ToCore converts a stored row to a core.Point.
func (p TrackPoint) ToCore() core.Point {
	return core.Point{
		Lat:      p.Lat,
		Lng:      p.Lng,
		Time:     p.Time.UTC(),
		Speed:    p.Speed,
		Accuracy: p.Accuracy,
	}
}

// TrackPointFromCore builds a row for deviceID at position seq.
func TrackPointFromCore(deviceID string, seq int, p core.Point) TrackPoint {
	return TrackPoint{
		DeviceID: deviceID,
		Seq:      seq,
		Time:     p.Time,
		Lat:      p.Lat,
		Lng:      p.Lng,
		Speed:    p.Speed,
		Accuracy: p.Accuracy,
	}
}
