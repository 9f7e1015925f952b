package predicate

import (
	"testing"

	"guardrail/internal/core/errors"
	"guardrail/internal/engine/graph"
	"guardrail/internal/shared/util"
)

func unit(name string, tags ...string) graph.Unit {
	return graph.Unit{
		Name:    name,
		Package: util.SplitPackage(util.PackageOf(name)),
		Tags:    util.SortedUnique(tags),
		Kind:    graph.KindClass,
	}
}

func TestPackagePattern_Match(t *testing.T) {
	tests := []struct {
		pattern string
		pkg     string
		want    bool
	}{
		{"..service..", "com.acme.service", true},
		{"..service..", "com.acme.service.impl", true},
		{"..service..", "service", true},
		{"..service..", "com.acme.services", false},
		{"com.acme..", "com.acme", true},
		{"com.acme..", "com.acme.web", true},
		{"com.acme..", "org.acme.web", false},
		{"..domain", "com.acme.domain", true},
		{"..domain", "com.acme.domain.model", false},
		{"com.*.web", "com.acme.web", true},
		{"com.*.web", "com.acme.x.web", false},
		{"..*Impl..", "com.acme.OrdersImpl.x", true},
		{"com/acme/web", "com.acme.web", true},
		{"..", "", true},
	}
	for _, tt := range tests {
		p, err := CompilePackagePattern(tt.pattern)
		if err != nil {
			t.Fatalf("CompilePackagePattern(%q) failed: %v", tt.pattern, err)
		}
		if got := p.Match(util.SplitPackage(tt.pkg)); got != tt.want {
			t.Errorf("%q.Match(%q) = %v, want %v", tt.pattern, tt.pkg, got, tt.want)
		}
	}
}

func TestPackagePattern_Capture(t *testing.T) {
	p, err := CompilePackagePattern("com.acme.(*)..")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if !p.HasCapture() {
		t.Fatal("expected capture group")
	}
	got, ok := p.Capture([]string{"com", "acme", "billing", "internal"})
	if !ok || got != "billing" {
		t.Fatalf("expected capture billing, got %q (%v)", got, ok)
	}
	if _, ok := p.Capture([]string{"com", "acme"}); ok {
		t.Fatal("expected no match without a segment to capture")
	}
}

func TestPackagePattern_Errors(t *testing.T) {
	for _, raw := range []string{"", "com.(a).(b)", "com.()", "com.(a"} {
		if _, err := CompilePackagePattern(raw); !errors.IsCode(err, errors.CodeConfiguration) {
			t.Errorf("expected configuration error for %q, got %v", raw, err)
		}
	}
}

func TestCompile_EmptySpecIsConfigurationError(t *testing.T) {
	_, err := Compile(Spec{})
	if !errors.IsCode(err, errors.CodeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	_, err = Compile(Spec{Everything: true, Tag: []string{"x"}})
	if !errors.IsCode(err, errors.CodeConfiguration) {
		t.Fatalf("expected configuration error for everything+tag, got %v", err)
	}
}

func TestCompile_FieldsAreConjoined(t *testing.T) {
	p, err := Compile(Spec{
		Package:    []string{"..web.."},
		NameSuffix: []string{"Controller"},
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if !p.Match(unit("app.web.OrderController")) {
		t.Fatal("expected web controller to match")
	}
	if p.Match(unit("app.web.OrderView")) {
		t.Fatal("suffix must also hold")
	}
	if p.Match(unit("app.service.OrderController")) {
		t.Fatal("package must also hold")
	}
}

func TestCompile_Leaves(t *testing.T) {
	yes, no := true, false
	iface := unit("app.api.IOrders")
	iface.Kind = graph.KindInterface
	testUnit := unit("app.api.OrdersTest")
	testUnit.Test = true

	tests := []struct {
		name string
		spec Spec
		u    graph.Unit
		want bool
	}{
		{"glob hit", Spec{Glob: []string{"app.*.Orders*"}}, unit("app.api.OrdersImpl"), true},
		{"glob stays in segment", Spec{Glob: []string{"app.*"}}, unit("app.api.Orders"), false},
		{"glob double star", Spec{Glob: []string{"app.**"}}, unit("app.api.Orders"), true},
		{"name exact", Spec{Name: []string{"app.api.Orders"}}, unit("app.api.Orders"), true},
		{"name prefix", Spec{NamePrefix: []string{"I"}}, iface, true},
		{"name regex", Spec{NameRegex: `Impl$`}, unit("app.api.OrdersImpl"), true},
		{"tag", Spec{Tag: []string{"Service", "Component"}}, unit("app.S", "Component"), true},
		{"tag miss", Spec{Tag: []string{"Service"}}, unit("app.S", "Component"), false},
		{"kind", Spec{Kind: []string{"interface"}}, iface, true},
		{"test true", Spec{Test: &yes}, testUnit, true},
		{"test false", Spec{Test: &no}, testUnit, false},
		{"everything", Spec{Everything: true}, unit("x"), true},
		{"not", Spec{Not: &Spec{Tag: []string{"Generated"}}}, unit("app.A"), true},
		{"any", Spec{Any: []Spec{{Tag: []string{"x"}}, {NameSuffix: []string{"A"}}}}, unit("app.A"), true},
		{"all", Spec{All: []Spec{{Tag: []string{"x"}}, {NameSuffix: []string{"A"}}}}, unit("app.A"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.spec)
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			if got := p.Match(tt.u); got != tt.want {
				t.Fatalf("%s: Match(%s) = %v, want %v", p, tt.u.Name, got, tt.want)
			}
		})
	}
}

func TestCompile_NestedErrorsCarryIndex(t *testing.T) {
	_, err := Compile(Spec{Any: []Spec{{Tag: []string{"x"}}, {}}})
	if !errors.IsCode(err, errors.CodeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	_, err = Compile(Spec{NameRegex: "("})
	if !errors.IsCode(err, errors.CodeConfiguration) {
		t.Fatalf("expected configuration error for bad regex, got %v", err)
	}
}

func TestZeroPredicateMatchesNothing(t *testing.T) {
	var p Predicate
	if p.Match(unit("a.B")) {
		t.Fatal("zero predicate must not match")
	}
}
