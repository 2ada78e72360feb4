package engine

import (
	"errors"
	"testing"

	"github.com/NERVsystems/osmreach/pkg/core"
)

func TestParamsQuery(t *testing.T) {
	tests := []struct {
		name      string
		params    Params
		wantID    *int64
		wantLat   float64
		wantLon   float64
		wantPoint bool
		wantErr   core.ErrorCode
	}{
		{
			name:   "road id wins",
			params: Params{RoadID: ptr(int64(7)), Lat: ptr(1.0), Lon: ptr(2.0), At: "garbage"},
			wantID: ptr(int64(7)),
		},
		{
			name:      "lat and lon",
			params:    Params{Lat: ptr(47.5), Lon: ptr(19.05)},
			wantPoint: true, wantLat: 47.5, wantLon: 19.05,
		},
		{
			name:      "decimal at",
			params:    Params{At: "47.5, 19.05", Lat: ptr(1.0), Lon: ptr(1.0)},
			wantPoint: true, wantLat: 47.5, wantLon: 19.05,
		},
		{
			name:    "unparseable at",
			params:  Params{At: "somewhere nice"},
			wantErr: core.ErrInvalidInput,
		},
		{
			name:    "lat without lon",
			params:  Params{Lat: ptr(47.5)},
			wantErr: core.ErrMissingParameter,
		},
		{
			name:   "empty",
			params: Params{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := tt.params.Query()
			if tt.wantErr != "" {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Query() error = %v, want %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if (q.RoadID == nil) != (tt.wantID == nil) || (q.RoadID != nil && *q.RoadID != *tt.wantID) {
				t.Errorf("RoadID = %v, want %v", q.RoadID, tt.wantID)
			}
			if (q.Point != nil) != tt.wantPoint {
				t.Fatalf("Point = %v, want set %v", q.Point, tt.wantPoint)
			}
			if q.Point != nil && (q.Point.Latitude != tt.wantLat || q.Point.Longitude != tt.wantLon) {
				t.Errorf("Point = %+v", *q.Point)
			}
		})
	}
}
