package roadnet

import (
	"errors"
	"testing"

	"github.com/NERVsystems/osmreach/pkg/core"
	"github.com/NERVsystems/osmreach/pkg/geo"
)

func ptr[T any](v T) *T { return &v }

func TestFindRoot(t *testing.T) {
	s := mustStore(t)

	tests := []struct {
		name     string
		sel      Selector
		wantID   int64
		wantCode core.ErrorCode
	}{
		{name: "by id", sel: Selector{RoadID: ptr(int64(200))}, wantID: 200},
		{name: "unknown id", sel: Selector{RoadID: ptr(int64(5))}, wantCode: core.ErrRootNotFound},
		{
			// node 2 belongs to both roads; the first in store order wins
			name:   "shared node picks first road",
			sel:    Selector{Point: &geo.Location{Latitude: 10.0010, Longitude: 20.0010}},
			wantID: 100,
		},
		{
			name:   "within tolerance",
			sel:    Selector{Point: &geo.Location{Latitude: 10.0035, Longitude: 20.0025}},
			wantID: 200,
		},
		{
			name:     "outside tolerance on one axis",
			sel:      Selector{Point: &geo.Location{Latitude: 10.0030, Longitude: 20.0060}},
			wantCode: core.ErrRootNotFound,
		},
		{
			name:   "id wins over point",
			sel:    Selector{RoadID: ptr(int64(200)), Point: &geo.Location{Latitude: 10, Longitude: 20}},
			wantID: 200,
		},
		{name: "empty selector", sel: Selector{}, wantCode: core.ErrMissingParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := s.FindRoot(tt.sel)
			if tt.wantCode != "" {
				if !errors.Is(err, tt.wantCode) {
					t.Fatalf("FindRoot(%s) error = %v, want %s", tt.sel, err, tt.wantCode)
				}
				if r != nil {
					t.Errorf("FindRoot(%s) returned road %d with an error", tt.sel, r.ID)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindRoot(%s) error = %v", tt.sel, err)
			}
			if r.ID != tt.wantID {
				t.Errorf("FindRoot(%s) = %d, want %d", tt.sel, r.ID, tt.wantID)
			}
		})
	}
}

func TestSelectorString(t *testing.T) {
	if got := (Selector{RoadID: ptr(int64(7))}).String(); got != "road_id=7" {
		t.Errorf("String() = %q", got)
	}
	if got := (Selector{}).String(); got != "<empty>" {
		t.Errorf("String() = %q", got)
	}
}
