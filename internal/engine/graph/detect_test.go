package graph

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestDetectCycles_SimpleRing(t *testing.T) {
	g := buildGraph(t, []string{"modA", "modB", "modC"}, [][2]string{{"modA", "modB"}, {"modB", "modC"}, {"modC", "modA"}})

	cycles := g.DetectCycles()
	if len(cycles) != 1 {
		t.Fatalf("Expected 1 cycle, got %d", len(cycles))
	}
	if !reflect.DeepEqual(cycles[0], []string{"modA", "modB", "modC"}) {
		t.Errorf("Unexpected cycle: %v", cycles[0])
	}
}

func TestDetectCycles_SelfEdge(t *testing.T) {
	g := buildGraph(t, []string{"a", "b"}, [][2]string{{"a", "a"}, {"a", "b"}})

	cycles := g.DetectCycles()
	if len(cycles) != 1 || !reflect.DeepEqual(cycles[0], []string{"a"}) {
		t.Fatalf("expected self-edge cycle on a, got %v", cycles)
	}
}

func TestDetectCycles_Deep(t *testing.T) {
	count := 5000 // deep enough to hurt a recursive walk
	units := make([]string, count)
	deps := make([][2]string, 0, count)
	for i := 0; i < count; i++ {
		units[i] = fmt.Sprintf("u%05d", i)
	}
	for i := 0; i < count-1; i++ {
		deps = append(deps, [2]string{units[i], units[i+1]})
	}
	deps = append(deps, [2]string{units[count-1], units[0]})

	g := buildGraph(t, units, deps)
	cycles := g.DetectCycles()
	if len(cycles) != 1 || len(cycles[0]) != count {
		t.Fatalf("expected one cycle over %d units, got %d cycles", count, len(cycles))
	}
}

func TestFindPath(t *testing.T) {
	g := buildGraph(t, []string{"a", "b", "c", "d"}, [][2]string{{"a", "c"}, {"a", "b"}, {"b", "d"}, {"c", "d"}})

	path, ok := g.FindPath("a", "d")
	if !ok {
		t.Fatal("expected path a -> d")
	}
	if strings.Join(path, ">") != "a>b>d" {
		t.Fatalf("expected lexicographically first shortest path, got %v", path)
	}
	if _, ok := g.FindPath("d", "a"); ok {
		t.Fatal("expected no path d -> a")
	}
	if path, ok := g.FindPath("a", "a"); !ok || len(path) != 1 {
		t.Fatalf("expected trivial path, got %v", path)
	}
	if _, ok := g.FindPath("a", "missing"); ok {
		t.Fatal("expected missing unit to yield no path")
	}
}

func TestStronglyConnectedComponents_Order(t *testing.T) {
	nodes := []string{"z", "y", "x", "w"}
	adjacency := map[string][]string{
		"z": {"y"},
		"y": {"z"},
		"x": {"w"},
	}
	comps := StronglyConnectedComponents(nodes, adjacency)
	want := [][]string{{"w"}, {"x"}, {"y", "z"}}
	if !reflect.DeepEqual(comps, want) {
		t.Fatalf("expected %v, got %v", want, comps)
	}
}
