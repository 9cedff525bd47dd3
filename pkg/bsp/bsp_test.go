package bsp

import (
	"errors"
	"testing"

	"github.com/chewxy/math32"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/pofconv/pkg/geometry"
	pm "github.com/Faultbox/pofconv/pkg/math"
)

var up = pm.V3(0, 0, 1)

func poly(source int, pts ...pm.Vec3) Polygon {
	p := Polygon{Normal: up, Texture: geometry.NoTexture, Source: source}
	for _, pt := range pts {
		p.Vertices = append(p.Vertices, Vertex{Position: pt, Normal: up})
	}
	return p
}

// row returns n unit triangles in the z=0 plane, spaced 3 apart along x.
func row(n int) []Polygon {
	out := make([]Polygon, n)
	for i := range out {
		x := float32(3 * i)
		out[i] = poly(i, pm.V3(x, 0, 0), pm.V3(x+1, 0, 0), pm.V3(x, 1, 0))
	}
	return out
}

func TestSplitPolygonConservation(t *testing.T) {
	tests := []struct {
		name      string
		poly      Polygon
		plane     Plane
		wantFront []pm.Vec3
		wantBack  []pm.Vec3
	}{
		{
			name:      "square across x=1",
			poly:      poly(0, pm.V3(0, 0, 0), pm.V3(2, 0, 0), pm.V3(2, 2, 0), pm.V3(0, 2, 0)),
			plane:     Plane{Normal: pm.V3(1, 0, 0), Point: pm.V3(1, 0, 0)},
			wantFront: []pm.Vec3{pm.V3(2, 0, 0), pm.V3(2, 2, 0)},
			wantBack:  []pm.Vec3{pm.V3(0, 0, 0), pm.V3(0, 2, 0)},
		},
		{
			name:      "triangle with a vertex on the plane",
			poly:      poly(0, pm.V3(0, 0, 0), pm.V3(2, 1, 0), pm.V3(1, 2, 0)),
			plane:     Plane{Normal: pm.V3(1, 0, 0), Point: pm.V3(1, 0, 0)},
			wantFront: []pm.Vec3{pm.V3(2, 1, 0), pm.V3(1, 2, 0)},
			wantBack:  []pm.Vec3{pm.V3(0, 0, 0), pm.V3(1, 2, 0)},
		},
		{
			name:      "oblique plane",
			poly:      poly(0, pm.V3(0, 0, 0), pm.V3(4, 0, 0), pm.V3(0, 4, 0)),
			plane:     Plane{Normal: pm.V3(0.6, 0.8, 0), Point: pm.V3(1, 1, 0)},
			wantFront: []pm.Vec3{pm.V3(4, 0, 0), pm.V3(0, 4, 0)},
			wantBack:  []pm.Vec3{pm.V3(0, 0, 0)},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			front, back := SplitPolygon(&tt.poly, tt.plane)
			if front == nil || back == nil {
				t.Fatalf("expected two pieces, got front=%v back=%v", front, back)
			}
			check := func(side string, piece *Polygon, want []pm.Vec3) {
				var kept []pm.Vec3
				for _, v := range piece.Vertices {
					if v.Interpolated {
						if d := tt.plane.Distance(v.Position); math32.Abs(d) > 1e-5 {
							t.Errorf("%s: interpolated vertex %v is %g off the plane", side, v.Position, d)
						}
						continue
					}
					kept = append(kept, v.Position)
				}
				if !sameSet(kept, want) {
					t.Errorf("%s: original vertices = %v, want %v", side, kept, want)
				}
				if len(piece.Vertices) < 3 {
					t.Errorf("%s: %d vertices", side, len(piece.Vertices))
				}
			}
			check("front", front, tt.wantFront)
			check("back", back, tt.wantBack)
		})
	}
}

func sameSet(a, b []pm.Vec3) bool {
	if len(a) != len(b) {
		return false
	}
	count := make(map[pm.Vec3]int)
	for _, v := range a {
		count[v]++
	}
	for _, v := range b {
		count[v]--
		if count[v] < 0 {
			return false
		}
	}
	return true
}

func TestSplitPolygonOneSided(t *testing.T) {
	p := poly(0, pm.V3(2, 0, 0), pm.V3(3, 0, 0), pm.V3(2, 1, 0))
	plane := Plane{Normal: pm.V3(1, 0, 0), Point: pm.V3(1, 0, 0)}
	front, back := SplitPolygon(&p, plane)
	if front != &p || back != nil {
		t.Errorf("polygon in front was split: front=%v back=%v", front, back)
	}

	coplanar := poly(0, pm.V3(0, 0, 0), pm.V3(1, 0, 0), pm.V3(0, 1, 0))
	front, back = SplitPolygon(&coplanar, Plane{Normal: up})
	if front != &coplanar || back != nil {
		t.Error("coplanar polygon should be returned as front")
	}
}

func TestBuildValidate(t *testing.T) {
	polys := row(8)
	tree, err := Build(polys, DefaultOptions(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	report := Validate(tree, DefaultOptions())
	if !report.Valid() {
		t.Errorf("fresh tree has fatal issues: %+v", report.Issues)
	}
	if got := tree.LeafPolygonCount(); got != len(polys) {
		t.Errorf("leaf polygons = %d, want %d", got, len(polys))
	}
	if tree.Stats.Leaves != 8 || tree.Stats.Dropped != 0 || tree.Stats.Splits != 0 {
		t.Errorf("stats = %+v", tree.Stats)
	}
	if tree.Stats.MaxDepth != 3 {
		t.Errorf("max depth = %d, want 3", tree.Stats.MaxDepth)
	}
	tree.Walk(func(n *Node, _ int) {
		if n.Leaf != nil && len(n.Leaf.Polygons) > DefaultLeafSize {
			t.Errorf("leaf holds %d polygons", len(n.Leaf.Polygons))
		}
	})
}

func TestBuildSplitsStraddlingPolygon(t *testing.T) {
	polys := []Polygon{
		poly(0, pm.V3(0, 0, 0), pm.V3(1, 0, 0), pm.V3(0, 1, 0)),
		poly(1, pm.V3(9, 0, 0), pm.V3(10, 0, 0), pm.V3(9, 1, 0)),
		poly(2, pm.V3(0, 5, 0), pm.V3(10, 5, 0), pm.V3(10, 6, 0), pm.V3(0, 6, 0)),
	}
	tree, err := Build(polys, DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if tree.Stats.Splits == 0 {
		t.Fatal("expected the long quad to be split")
	}
	want := len(polys) + tree.Stats.Splits - tree.Stats.Dropped
	if got := tree.LeafPolygonCount(); got != want {
		t.Errorf("leaf polygons = %d, want %d", got, want)
	}
	if r := Validate(tree, DefaultOptions()); !r.Valid() {
		t.Errorf("fatal issues: %+v", r.Issues)
	}
	for _, p := range tree.Polygons {
		if p.Source < 0 || p.Source >= len(polys) {
			t.Errorf("piece source = %d", p.Source)
		}
	}
}

func TestBuildDropsDegenerate(t *testing.T) {
	polys := row(2)
	polys = append(polys, poly(2, pm.V3(50, 0, 0), pm.V3(51, 0, 0)))

	core, logs := observer.New(zapcore.WarnLevel)
	tree, err := Build(polys, DefaultOptions(), zap.New(core))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if tree.Stats.Dropped != 1 {
		t.Errorf("dropped = %d, want 1", tree.Stats.Dropped)
	}
	if logs.Len() != 1 {
		t.Errorf("warnings = %d, want 1", logs.Len())
	}
	if got := tree.LeafPolygonCount(); got != len(polys)-1 {
		t.Errorf("leaf polygons = %d, want %d", got, len(polys)-1)
	}
}

func TestBuildDepthLimit(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxDepth = 1
	_, err := Build(row(8), opts, nil)
	if !errors.Is(err, ErrCompile) {
		t.Fatalf("err = %v, want ErrCompile", err)
	}
}

// sphere returns a closed UV sphere of radius 10 as triangles.
func sphere(segments, rings int) []Polygon {
	at := func(r, s int) pm.Vec3 {
		theta := math32.Pi * float32(r) / float32(rings)
		phi := 2 * math32.Pi * float32(s%segments) / float32(segments)
		return pm.V3(10*math32.Sin(theta)*math32.Cos(phi), 10*math32.Sin(theta)*math32.Sin(phi), 10*math32.Cos(theta))
	}
	var out []Polygon
	for r := 0; r < rings; r++ {
		for s := 0; s < segments; s++ {
			if r < rings-1 {
				out = append(out, poly(len(out), at(r, s), at(r+1, s), at(r+1, s+1)))
			}
			if r > 0 {
				out = append(out, poly(len(out), at(r, s), at(r+1, s+1), at(r, s+1)))
			}
		}
	}
	return out
}

func TestBuildClosedMesh(t *testing.T) {
	tests := []struct {
		name  string
		polys []Polygon
	}{
		{"sphere 24x12", sphere(24, 12)},
		{"sphere 48x24", sphere(48, 24)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			n := len(tt.polys)
			tree, err := Build(tt.polys, DefaultOptions(), zaptest.NewLogger(t, zaptest.Level(zapcore.ErrorLevel)))
			if err != nil {
				if !errors.Is(err, ErrCompile) {
					t.Fatalf("err = %v, want ErrCompile", err)
				}
				return
			}
			if tree.Stats.Splits > DefaultMaxFragments*n {
				t.Errorf("splits = %d, above budget %d", tree.Stats.Splits, DefaultMaxFragments*n)
			}
			if got := len(tree.Polygons); got > n+tree.Stats.Splits {
				t.Errorf("pieces = %d, want at most %d", got, n+tree.Stats.Splits)
			}
		})
	}
}

func TestBuildFragmentLimit(t *testing.T) {
	// Eight long strips cross every plane that separates eight small
	// triangles, so each level of the tree cuts all of them again.
	var polys []Polygon
	for j := 0; j < 8; j++ {
		y := 0.1 * float32(j)
		polys = append(polys, poly(len(polys),
			pm.V3(-1, y, 0), pm.V3(80, y, 0), pm.V3(80, y+0.05, 0), pm.V3(-1, y+0.05, 0)))
	}
	for i := 0; i < 8; i++ {
		x := float32(10 * i)
		polys = append(polys, poly(len(polys), pm.V3(x, 5, 0), pm.V3(x+1, 5, 0), pm.V3(x, 6, 0)))
	}

	tests := []struct {
		name      string
		fragments int
		wantErr   bool
	}{
		{"one split per polygon", 1, true},
		{"generous budget", 64, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.MaxFragments = tt.fragments
			_, err := Build(polys, opts, nil)
			if tt.wantErr {
				if !errors.Is(err, ErrCompile) {
					t.Fatalf("err = %v, want ErrCompile", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}
		})
	}
}

func TestBuildEmpty(t *testing.T) {
	tree, err := Build(nil, DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !tree.Root.Empty() {
		t.Error("root of empty build should be an empty leaf")
	}
	if r := Validate(tree, DefaultOptions()); !r.Valid() {
		t.Errorf("fatal issues: %+v", r.Issues)
	}
}

func TestValidateIssues(t *testing.T) {
	good := poly(0, pm.V3(0, 0, 0), pm.V3(1, 0, 0), pm.V3(0, 1, 0))
	box := Bounds{Min: pm.V3(0, 0, 0), Max: pm.V3(1, 1, 0)}

	tests := []struct {
		name      string
		tree      *Tree
		wantValid bool
		fatal     int
		warnings  int
	}{
		{
			name:      "good leaf",
			tree:      &Tree{Root: &Node{Leaf: &Leaf{Polygons: []int{0}, Bounds: box}}, Polygons: []Polygon{good}},
			wantValid: true,
		},
		{
			name:      "leaf and split",
			tree:      &Tree{Root: &Node{Leaf: &Leaf{}, Split: &Split{}}},
			wantValid: false,
			fatal:     1,
		},
		{
			name: "split without normal",
			tree: &Tree{Root: &Node{Split: &Split{
				Front: &Node{Leaf: &Leaf{}},
				Back:  &Node{Leaf: &Leaf{}},
			}}},
			wantValid: false,
			fatal:     1,
		},
		{
			name:      "inverted bounds",
			tree:      &Tree{Root: &Node{Leaf: &Leaf{Bounds: Bounds{Min: pm.V3(1, 0, 0)}}}},
			wantValid: false,
			fatal:     1,
		},
		{
			name: "two vertex polygon",
			tree: &Tree{
				Root:     &Node{Leaf: &Leaf{Polygons: []int{0}, Bounds: box}},
				Polygons: []Polygon{poly(0, pm.V3(0, 0, 0), pm.V3(1, 0, 0))},
			},
			wantValid: false,
			fatal:     1,
		},
		{
			name: "non-unit normal and duplicate vertex",
			tree: &Tree{
				Root: &Node{Leaf: &Leaf{Polygons: []int{0}, Bounds: box}},
				Polygons: []Polygon{{
					Normal: pm.V3(0, 0, 2),
					Vertices: []Vertex{
						{Position: pm.V3(0, 0, 0)}, {Position: pm.V3(1, 0, 0)},
						{Position: pm.V3(1, 0, 0)}, {Position: pm.V3(0, 1, 0)},
					},
				}},
			},
			wantValid: true,
			warnings:  2,
		},
		{
			name: "vertex outside bounds",
			tree: &Tree{
				Root:     &Node{Leaf: &Leaf{Polygons: []int{0}, Bounds: Bounds{Max: pm.V3(0.5, 0.5, 0)}}},
				Polygons: []Polygon{good},
			},
			wantValid: true,
			warnings:  1,
		},
		{
			name:      "no root",
			tree:      &Tree{},
			wantValid: false,
			fatal:     1,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			r := Validate(tt.tree, DefaultOptions())
			if r.Valid() != tt.wantValid {
				t.Errorf("Valid = %v, want %v: %+v", r.Valid(), tt.wantValid, r.Issues)
			}
			if got := r.Count(Fatal); got != tt.fatal {
				t.Errorf("fatal = %d, want %d: %+v", got, tt.fatal, r.Issues)
			}
			if got := r.Count(Warning); got != tt.warnings {
				t.Errorf("warnings = %d, want %d: %+v", got, tt.warnings, r.Issues)
			}
		})
	}
}

func TestValidateDepth(t *testing.T) {
	tree, err := Build(row(8), DefaultOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	opts := DefaultOptions()
	opts.MaxDepth = 2
	if r := Validate(tree, opts); r.Valid() {
		t.Error("tree deeper than the limit reported valid")
	}
}

func TestIntersect(t *testing.T) {
	polys := row(8)
	// A second layer below triangle 2 so the closest hit matters.
	polys = append(polys, poly(8, pm.V3(6, 0, -1), pm.V3(7, 0, -1), pm.V3(6, 1, -1)))
	tree, err := Build(polys, DefaultOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		ray      Ray
		hit      bool
		source   int
		distance float32
	}{
		{"top of triangle 2", Ray{Origin: pm.V3(6.25, 0.25, 5), Dir: pm.V3(0, 0, -1)}, true, 2, 5},
		{"from below", Ray{Origin: pm.V3(6.25, 0.25, -5), Dir: pm.V3(0, 0, 1)}, true, 8, 4},
		{"triangle 5", Ray{Origin: pm.V3(15.2, 0.2, 1), Dir: pm.V3(0, 0, -1)}, true, 5, 1},
		{"gap between triangles", Ray{Origin: pm.V3(2, 0.25, 5), Dir: pm.V3(0, 0, -1)}, false, 0, 0},
		{"outside hypotenuse", Ray{Origin: pm.V3(0.9, 0.9, 5), Dir: pm.V3(0, 0, -1)}, false, 0, 0},
		{"pointing away", Ray{Origin: pm.V3(6.25, 0.25, 5), Dir: pm.V3(0, 0, 1)}, false, 0, 0},
		{"parallel", Ray{Origin: pm.V3(-1, 0.25, 0), Dir: pm.V3(1, 0, 0)}, false, 0, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			h, ok := tree.Intersect(tt.ray)
			if ok != tt.hit {
				t.Fatalf("hit = %v, want %v (%+v)", ok, tt.hit, h)
			}
			if !ok {
				return
			}
			if src := tree.Polygons[h.Polygon].Source; src != tt.source {
				t.Errorf("hit polygon from source %d, want %d", src, tt.source)
			}
			if math32.Abs(h.Distance-tt.distance) > 1e-5 {
				t.Errorf("distance = %g, want %g", h.Distance, tt.distance)
			}
		})
	}
}

func leafNode(b Bounds, polys ...int) *Node {
	return &Node{Leaf: &Leaf{Polygons: polys, Bounds: b}}
}

func TestOptimize(t *testing.T) {
	// Two triangles forming a quad share the edge (1,0,0)-(0,1,0).
	quad := []Polygon{
		poly(0, pm.V3(0, 0, 0), pm.V3(1, 0, 0), pm.V3(0, 1, 0)),
		poly(1, pm.V3(1, 0, 0), pm.V3(1, 1, 0), pm.V3(0, 1, 0)),
		poly(2, pm.V3(5, 0, 0), pm.V3(6, 0, 0), pm.V3(5, 1, 0)),
		poly(3, pm.V3(5, 5, 0), pm.V3(6, 5, 0), pm.V3(5, 6, 0)),
	}
	box := Bounds{Max: pm.V3(1, 1, 0)}
	far := Bounds{Min: pm.V3(5, 0, 0), Max: pm.V3(6, 1, 0)}
	far2 := Bounds{Min: pm.V3(5, 5, 0), Max: pm.V3(6, 6, 0)}
	xPlane := Plane{Normal: pm.V3(1, 0, 0), Point: pm.V3(0.5, 0, 0)}
	split := func(pl Plane, f, b *Node) *Node {
		return &Node{Split: &Split{Plane: pl, Front: f, Back: b, Bounds: unionBounds(f, b)}}
	}

	tests := []struct {
		name       string
		root       *Node
		wantLeaf   bool
		wantLeaves int
		wantPolys  int
	}{
		{
			name:       "both children empty",
			root:       split(xPlane, leafNode(Bounds{}), leafNode(Bounds{})),
			wantLeaf:   true,
			wantLeaves: 1,
		},
		{
			name:       "one empty child collapses",
			root:       split(xPlane, leafNode(Bounds{}), leafNode(far, 2)),
			wantLeaf:   true,
			wantLeaves: 1,
			wantPolys:  1,
		},
		{
			name:       "leaves sharing an edge merge",
			root:       split(xPlane, leafNode(box, 1), leafNode(box, 0)),
			wantLeaf:   true,
			wantLeaves: 1,
			wantPolys:  2,
		},
		{
			name:       "leaves without a shared edge stay",
			root:       split(xPlane, leafNode(far, 2), leafNode(box, 0)),
			wantLeaves: 2,
			wantPolys:  2,
		},
		{
			name: "parallel sibling splits merge",
			root: split(Plane{Normal: pm.V3(0, 1, 0), Point: pm.V3(0, 0.5, 0)},
				split(xPlane, leafNode(far, 2), leafNode(box, 0)),
				split(Plane{Normal: pm.V3(-1, 0, 0), Point: pm.V3(3, 0, 0)}, leafNode(box, 1), leafNode(far2, 3))),
			wantLeaves: 2,
			wantPolys:  4,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			in := &Tree{Root: tt.root, Polygons: quad}
			out := Optimize(in, DefaultOptions(), nil)
			if (out.Root.Leaf != nil) != tt.wantLeaf {
				t.Errorf("root is leaf = %v, want %v", out.Root.Leaf != nil, tt.wantLeaf)
			}
			if out.Stats.Leaves != tt.wantLeaves {
				t.Errorf("leaves = %d, want %d", out.Stats.Leaves, tt.wantLeaves)
			}
			if got := out.LeafPolygonCount(); got != tt.wantPolys {
				t.Errorf("leaf polygons = %d, want %d", got, tt.wantPolys)
			}
			if r := Validate(out, DefaultOptions()); !r.Valid() {
				t.Errorf("optimized tree invalid: %+v", r.Issues)
			}
		})
	}
}

func TestOptimizeRespectsMergeCap(t *testing.T) {
	quad := []Polygon{
		poly(0, pm.V3(0, 0, 0), pm.V3(1, 0, 0), pm.V3(0, 1, 0)),
		poly(1, pm.V3(1, 0, 0), pm.V3(1, 1, 0), pm.V3(0, 1, 0)),
	}
	box := Bounds{Max: pm.V3(1, 1, 0)}
	root := &Node{Split: &Split{
		Plane:  Plane{Normal: pm.V3(1, 0, 0)},
		Front:  leafNode(box, 0),
		Back:   leafNode(box, 1),
		Bounds: box,
	}}
	opts := DefaultOptions()
	opts.MaxMergedLeaf = 1
	out := Optimize(&Tree{Root: root, Polygons: quad}, opts, nil)
	if out.Root.Split == nil {
		t.Error("leaves merged past the cap")
	}
	if root.Split.Front.Leaf.Polygons[0] != 0 {
		t.Error("Optimize modified its input")
	}
}

func TestOptimizeBuiltTree(t *testing.T) {
	tree, err := Build(row(8), DefaultOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	out := Optimize(tree, DefaultOptions(), nil)
	if got := out.LeafPolygonCount(); got != 8 {
		t.Errorf("leaf polygons = %d, want 8", got)
	}
	if r := Validate(out, DefaultOptions()); !r.Valid() {
		t.Errorf("fatal issues: %+v", r.Issues)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	polys := row(4)
	polys[1].Texture = 0
	polys[1].Vertices[1].UV = pm.Vec2{X: 1}
	tree, err := Build(polys, DefaultOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := Serialize(tree)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	g, err := geometry.Decode(raw, nil)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(g.Polygons) != len(tree.Polygons) {
		t.Fatalf("polygons = %d, want %d", len(g.Polygons), len(tree.Polygons))
	}
	if len(g.Vertices) != 12 {
		t.Errorf("vertices = %d, want 12", len(g.Vertices))
	}
	textured := 0
	for _, p := range g.Polygons {
		p := p
		if p.Textured() {
			textured++
			if p.Corners[1].UV != (pm.Vec2{X: 1}) {
				t.Errorf("uv = %v", p.Corners[1].UV)
			}
		}
	}
	if textured != 1 {
		t.Errorf("textured polygons = %d, want 1", textured)
	}

	rebuilt, err := Build(FromGeometry(g), DefaultOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if rebuilt.LeafPolygonCount() != 4 {
		t.Errorf("rebuilt leaf polygons = %d", rebuilt.LeafPolygonCount())
	}
}
