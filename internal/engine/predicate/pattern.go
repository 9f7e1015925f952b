package predicate

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	lru "github.com/hashicorp/golang-lru/v2"

	"guardrail/internal/core/errors"
	"guardrail/internal/shared/observability"
)

const patternCacheSize = 512

var (
	globCache    = mustCache[glob.Glob](patternCacheSize)
	packageCache = mustCache[*PackagePattern](patternCacheSize)
)

func mustCache[V any](size int) *lru.Cache[string, V] {
	c, err := lru.New[string, V](size)
	if err != nil {
		panic(err)
	}
	return c
}

// compileGlob compiles a gobwas glob once per (pattern, separator) pair.
func compileGlob(pattern string, separators ...rune) (glob.Glob, error) {
	key := pattern + "\x00" + string(separators)
	if g, ok := globCache.Get(key); ok {
		return g, nil
	}
	observability.PatternCacheMissesTotal.Inc()
	g, err := glob.Compile(pattern, separators...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConfiguration, fmt.Sprintf("invalid glob pattern %q", pattern))
	}
	globCache.Add(key, g)
	return g, nil
}

type tokenKind int

const (
	tokenSegment tokenKind = iota
	tokenAnySequence
)

type token struct {
	kind    tokenKind
	raw     string
	capture bool
	literal bool
	glob    glob.Glob
}

// PackagePattern matches package paths written in the ArchUnit notation:
// ".." stands for any number of packages (including none), "*" is a wildcard
// inside one package segment and "(*)" captures exactly one segment.
// Slash separators are accepted in place of dots.
//
//	..service..        any package containing a "service" segment
//	com.acme.(*)..     packages below com.acme, capturing the next segment
//	..domain           packages ending in "domain"
type PackagePattern struct {
	raw    string
	tokens []token
}

// CompilePackagePattern parses and caches a package pattern.
func CompilePackagePattern(raw string) (*PackagePattern, error) {
	raw = strings.TrimSpace(raw)
	if p, ok := packageCache.Get(raw); ok {
		return p, nil
	}
	observability.PatternCacheMissesTotal.Inc()
	p, err := parsePackagePattern(raw)
	if err != nil {
		return nil, err
	}
	packageCache.Add(raw, p)
	return p, nil
}

func parsePackagePattern(raw string) (*PackagePattern, error) {
	if raw == "" {
		return nil, errors.New(errors.CodeConfiguration, "package pattern must not be empty")
	}
	norm := strings.ReplaceAll(raw, "/", ".")
	p := &PackagePattern{raw: raw}

	for i := 0; i < len(norm); {
		switch {
		case strings.HasPrefix(norm[i:], ".."):
			if n := len(p.tokens); n == 0 || p.tokens[n-1].kind != tokenAnySequence {
				p.tokens = append(p.tokens, token{kind: tokenAnySequence, raw: ".."})
			}
			i += 2
			for i < len(norm) && norm[i] == '.' {
				i++
			}
		case norm[i] == '.':
			i++
		default:
			end := strings.IndexByte(norm[i:], '.')
			if end < 0 {
				end = len(norm)
			} else {
				end += i
			}
			tok, err := segmentToken(norm[i:end])
			if err != nil {
				return nil, errors.AddContext(err, "pattern", raw)
			}
			p.tokens = append(p.tokens, tok)
			i = end
		}
	}

	captures := 0
	for _, t := range p.tokens {
		if t.capture {
			captures++
		}
	}
	if captures > 1 {
		return nil, errors.Newf(errors.CodeConfiguration, "package pattern %q has %d capture groups; at most one is supported", raw, captures)
	}
	return p, nil
}

func segmentToken(seg string) (token, error) {
	t := token{kind: tokenSegment, raw: seg}
	if strings.HasPrefix(seg, "(") && strings.HasSuffix(seg, ")") {
		t.capture = true
		seg = seg[1 : len(seg)-1]
	}
	if seg == "" {
		return token{}, errors.Newf(errors.CodeConfiguration, "empty package segment in %q", t.raw)
	}
	if strings.ContainsAny(seg, "()") {
		return token{}, errors.Newf(errors.CodeConfiguration, "unbalanced capture group in segment %q", t.raw)
	}
	if !strings.ContainsAny(seg, "*?[]{}") {
		t.literal = true
		t.raw = seg
		return t, nil
	}
	g, err := compileGlob(seg)
	if err != nil {
		return token{}, err
	}
	t.glob = g
	t.raw = seg
	return t, nil
}

// String returns the pattern as written.
func (p *PackagePattern) String() string {
	return p.raw
}

// HasCapture reports whether the pattern contains a "(...)" group.
func (p *PackagePattern) HasCapture() bool {
	for _, t := range p.tokens {
		if t.capture {
			return true
		}
	}
	return false
}

// Match reports whether the package segments satisfy the pattern.
func (p *PackagePattern) Match(segments []string) bool {
	_, ok := p.Capture(segments)
	return ok
}

// Capture matches the segments and returns the captured segment, or "" when
// the pattern has no capture group.
func (p *PackagePattern) Capture(segments []string) (string, bool) {
	return matchTokens(p.tokens, segments)
}

func matchTokens(tokens []token, segments []string) (string, bool) {
	if len(tokens) == 0 {
		return "", len(segments) == 0
	}
	head := tokens[0]
	if head.kind == tokenAnySequence {
		for skip := 0; skip <= len(segments); skip++ {
			if captured, ok := matchTokens(tokens[1:], segments[skip:]); ok {
				return captured, true
			}
		}
		return "", false
	}
	if len(segments) == 0 || !head.matchSegment(segments[0]) {
		return "", false
	}
	captured, ok := matchTokens(tokens[1:], segments[1:])
	if !ok {
		return "", false
	}
	if head.capture {
		captured = segments[0]
	}
	return captured, true
}

func (t token) matchSegment(seg string) bool {
	if t.literal {
		return t.raw == seg
	}
	return t.glob != nil && t.glob.Match(seg)
}
