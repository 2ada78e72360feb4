package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/NERVsystems/osmreach/pkg/core"
	"github.com/NERVsystems/osmreach/pkg/roadnet"
)

// abc is the chain A(1) B(2) C(3): A and B share node 5, B and C share node 9
func abc(t *testing.T) *roadnet.Store {
	return buildStore(t,
		roadSpec{1, []int64{1, 3, 5}},
		roadSpec{2, []int64{5, 7, 9}},
		roadSpec{3, []int64{9, 11, 13}},
	)
}

func TestResolveChain(t *testing.T) {
	s := abc(t)
	e := newEngine(t, s)
	a := roads(t, s, 1)

	tests := []struct {
		depth      int
		wantIDs    []int64
		wantDepths []int
	}{
		{depth: 0, wantIDs: []int64{2}, wantDepths: []int{1}},
		{depth: 1, wantIDs: []int64{2}, wantDepths: []int{1}},
		{depth: 2, wantIDs: []int64{2, 3}, wantDepths: []int{1, 2}},
		{depth: 15, wantIDs: []int64{2, 3}, wantDepths: []int{1, 2}},
	}

	for _, tt := range tests {
		got, err := e.Resolve(context.Background(), a, roads(t, s, 2, 3), tt.depth, nil)
		if err != nil {
			t.Fatalf("Resolve(depth=%d) error = %v", tt.depth, err)
		}
		if !equalIDs(reachedIDs(got), tt.wantIDs) {
			t.Errorf("Resolve(depth=%d) = %v, want %v", tt.depth, reachedIDs(got), tt.wantIDs)
			continue
		}
		for i, r := range got {
			if r.Depth != tt.wantDepths[i] {
				t.Errorf("Resolve(depth=%d): road %d depth = %d, want %d", tt.depth, r.Road.ID, r.Depth, tt.wantDepths[i])
			}
		}
	}
}

func TestResolveDepthZeroIsOneLevel(t *testing.T) {
	s := grid(t)
	e := newEngine(t, s)
	root := roads(t, s, 1000)

	var levels []Level
	got, err := e.Resolve(context.Background(), root, without(s.Roads(), root), 0, func(l Level) error {
		levels = append(levels, l)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(levels) != 1 {
		t.Fatalf("depth 0 produced %d levels, want 1", len(levels))
	}
	// node 1 and 2 are shared with road 1001 (2-3), 1030 (1-11) and 1035 (2-12)
	if !equalIDs(sortedIDs(got), []int64{1001, 1030, 1035}) {
		t.Errorf("depth 0 reached %v", sortedIDs(got))
	}
}

func TestResolveIsolatedRoot(t *testing.T) {
	s := buildStore(t,
		roadSpec{1, []int64{1, 2}},
		roadSpec{2, []int64{3, 4}},
		roadSpec{3, []int64{4, 5}},
	)
	e := newEngine(t, s)

	for depth := 0; depth <= 5; depth++ {
		emitted := 0
		got, err := e.Resolve(context.Background(), roads(t, s, 1), roads(t, s, 2, 3), depth, func(Level) error {
			emitted++
			return nil
		})
		if err != nil {
			t.Fatalf("Resolve(depth=%d) error = %v", depth, err)
		}
		if len(got) != 0 || emitted != 0 {
			t.Errorf("Resolve(depth=%d) = %v with %d levels, want nothing", depth, reachedIDs(got), emitted)
		}
	}
}

func TestResolveNoSelfAdjacency(t *testing.T) {
	s := abc(t)
	e := newEngine(t, s)

	// the frontier is also in the pool and shares every node with itself
	got, err := e.Resolve(context.Background(), roads(t, s, 1), roads(t, s, 1, 2, 3), 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range got {
		if r.Road.ID == 1 {
			t.Fatalf("road 1 reported adjacent to itself: %v", reachedIDs(got))
		}
	}
	if !equalIDs(reachedIDs(got), []int64{2, 3}) {
		t.Errorf("Resolve() = %v, want [2 3]", reachedIDs(got))
	}
}

func TestResolveDedupOnCycles(t *testing.T) {
	s := grid(t)
	e := parallel(newEngine(t, s), 4)
	root := roads(t, s, 1012)

	got, err := e.Resolve(context.Background(), root, without(s.Roads(), root), 30, nil)
	if err != nil {
		t.Fatal(err)
	}

	seen := map[int64]bool{}
	for _, r := range got {
		if seen[r.Road.ID] {
			t.Fatalf("road %d reported twice", r.Road.ID)
		}
		seen[r.Road.ID] = true
	}
	// all 59 other lattice roads, none of the disconnected ones
	if len(got) != 59 {
		t.Errorf("reached %d roads, want 59", len(got))
	}
	if seen[5000] || seen[5001] {
		t.Error("disconnected roads were reached")
	}

	// depths never decrease along the output
	for i := 1; i < len(got); i++ {
		if got[i].Depth < got[i-1].Depth {
			t.Fatalf("depth decreases at %d: %d after %d", i, got[i].Depth, got[i-1].Depth)
		}
	}
}

func TestResolveDepthMonotonic(t *testing.T) {
	s := grid(t)
	e := newEngine(t, s)
	root := roads(t, s, 1000)
	pool := without(s.Roads(), root)

	var prev map[int64]bool
	for depth := 0; depth <= 12; depth++ {
		got, err := e.Resolve(context.Background(), root, pool, depth, nil)
		if err != nil {
			t.Fatal(err)
		}
		cur := map[int64]bool{}
		for _, r := range got {
			cur[r.Road.ID] = true
		}
		for id := range prev {
			if !cur[id] {
				t.Errorf("road %d reached at depth %d but not at depth %d", id, depth-1, depth)
			}
		}
		prev = cur
	}
}

func TestResolveParallelMatchesSequential(t *testing.T) {
	s := grid(t)
	root := roads(t, s, 1020)
	pool := without(s.Roads(), root)

	seq, err := newEngine(t, s, WithWorkers(1)).Resolve(context.Background(), root, pool, 20, nil)
	if err != nil {
		t.Fatal(err)
	}

	for _, workers := range []int{2, 3, 8} {
		e := parallel(newEngine(t, s), workers)
		for run := 0; run < 5; run++ {
			par, err := e.Resolve(context.Background(), root, pool, 20, nil)
			if err != nil {
				t.Fatal(err)
			}
			if !equalIDs(reachedIDs(par), reachedIDs(seq)) {
				t.Fatalf("workers=%d run %d: order differs\n got %v\nwant %v", workers, run, reachedIDs(par), reachedIDs(seq))
			}
		}
	}
}

func TestResolveLevelOrderFollowsPool(t *testing.T) {
	s := buildStore(t,
		roadSpec{1, []int64{1, 2}},
		roadSpec{10, []int64{2, 20}},
		roadSpec{11, []int64{1, 21}},
		roadSpec{12, []int64{2, 22}},
	)
	e := parallel(newEngine(t, s), 3)

	got, err := e.Resolve(context.Background(), roads(t, s, 1), roads(t, s, 12, 10, 11), 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !equalIDs(reachedIDs(got), []int64{12, 10, 11}) {
		t.Errorf("level order = %v, want pool order [12 10 11]", reachedIDs(got))
	}
}

func TestResolveNegativeDepth(t *testing.T) {
	s := abc(t)
	_, err := newEngine(t, s).Resolve(context.Background(), roads(t, s, 1), roads(t, s, 2), -1, nil)
	if !errors.Is(err, core.ErrInvalidDepth) {
		t.Fatalf("Resolve(depth=-1) error = %v, want %v", err, core.ErrInvalidDepth)
	}
}

func TestResolveEmitError(t *testing.T) {
	s := abc(t)
	stop := errors.New("consumer gone")

	calls := 0
	got, err := newEngine(t, s).Resolve(context.Background(), roads(t, s, 1), roads(t, s, 2, 3), 5, func(Level) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("Resolve() error = %v, want %v", err, stop)
	}
	if calls != 1 || len(got) != 1 {
		t.Errorf("search continued after emit failed: %d calls, %d roads", calls, len(got))
	}
}

func TestResolveCancelledBetweenLevels(t *testing.T) {
	s := abc(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var levels []int
	got, err := newEngine(t, s).Resolve(ctx, roads(t, s, 1), roads(t, s, 2, 3), 5, func(l Level) error {
		levels = append(levels, l.Depth)
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Resolve() error = %v, want context.Canceled", err)
	}
	if len(levels) != 1 || len(got) != 1 {
		t.Errorf("levels after cancel: %v, reached %v", levels, reachedIDs(got))
	}
}

func TestPrefilter(t *testing.T) {
	// 0.01 degrees is about 1.1 km of projected distance near the equator
	nodes := []roadnet.Node{
		roadnet.NewNode(1, nil, 0, 0),
		roadnet.NewNode(2, nil, 0.005, 0.005),
		roadnet.NewNode(3, nil, 0.05, 0),
		roadnet.NewNode(4, nil, 0, 0.05),
		roadnet.NewNode(5, nil, -0.02, -0.02),
		roadnet.NewNode(6, nil, 0.2, 0.2),
	}
	// 10 is the root, 13 is degenerate and 15 passes through the root's
	// first node but starts far away
	store, err := roadnet.NewStore(nodes, []roadnet.Road{
		{ID: 10, Nodes: []int64{1, 6}},
		{ID: 11, Nodes: []int64{5, 1}},
		{ID: 12, Nodes: []int64{3}},
		{ID: 13},
		{ID: 14, Nodes: []int64{2}},
		{ID: 15, Nodes: []int64{6, 1}},
		{ID: 16, Nodes: []int64{4}},
	})
	if err != nil {
		t.Fatal(err)
	}
	e := parallel(newEngine(t, store), 3)
	root, _ := store.Road(10)

	tests := []struct {
		name   string
		radius float64
		want   []int64
	}{
		{name: "zero radius", radius: 0, want: nil},
		{name: "one kilometer", radius: 1000, want: []int64{14}},
		{name: "three kilometers", radius: 3000, want: []int64{11, 14}},
		{name: "default", radius: DefaultRadius, want: []int64{11, 12, 14, 16}},
		{name: "everything", radius: 1e9, want: []int64{11, 12, 14, 15, 16}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, err := e.Prefilter(context.Background(), root, tt.radius)
			if err != nil {
				t.Fatalf("Prefilter() error = %v", err)
			}
			var ids []int64
			for _, r := range pool {
				ids = append(ids, r.ID)
			}
			if !equalIDs(ids, tt.want) {
				t.Errorf("Prefilter(%v) = %v, want %v", tt.radius, ids, tt.want)
			}
		})
	}
}

func TestPrefilterZeroRadiusSharedStart(t *testing.T) {
	// road 2 starts on exactly the root's first node
	s := buildStore(t,
		roadSpec{1, []int64{1, 2}},
		roadSpec{2, []int64{1, 3}},
	)
	pool, err := newEngine(t, s).Prefilter(context.Background(), roads(t, s, 1)[0], 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pool) != 0 {
		t.Errorf("radius 0 kept %d roads; the box test is strict", len(pool))
	}
}

func TestPrefilterErrors(t *testing.T) {
	s := buildStore(t, roadSpec{1, []int64{1}}, roadSpec{2, []int64{2}}, roadSpec{3, []int64{3}})
	e := newEngine(t, s, WithLimits(Limits{MaxCandidates: 1}))
	root := roads(t, s, 1)[0]

	if _, err := e.Prefilter(context.Background(), root, DefaultRadius); !errors.Is(err, core.ErrQueryTooBroad) {
		t.Errorf("oversized pool error = %v, want %v", err, core.ErrQueryTooBroad)
	}
	if _, err := e.Prefilter(context.Background(), root, -1); !errors.Is(err, core.ErrInvalidRadius) {
		t.Errorf("negative radius error = %v, want %v", err, core.ErrInvalidRadius)
	}
	if _, err := e.Prefilter(context.Background(), &roadnet.Road{ID: 9}, 10); !errors.Is(err, core.ErrDegenerateRoad) {
		t.Errorf("degenerate root error = %v, want %v", err, core.ErrDegenerateRoad)
	}
}
