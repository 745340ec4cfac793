// Package configcheck is a static checker for configuration files: YAML,
// JSON and dotenv files must parse, dotenv keys must be unique, and
// connection settings must not be left empty.
package configcheck

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/varalys/auditkit/internal/checker"
	"github.com/varalys/auditkit/internal/logging"
	"github.com/varalys/auditkit/internal/types"
)

// Name is the registration name of the checker.
const Name = "configcheck"

// connectionSuffixes mark keys that must carry a value.
var connectionSuffixes = []string{"_URL", "_URI", "_HOST", "_KEY", "_PASSWORD"}

// Checker audits configuration files in the target.
type Checker struct {
	Log *zap.Logger
}

// New returns a configcheck checker.
func New(log *zap.Logger) *Checker { return &Checker{Log: logging.OrNop(log)} }

func (c *Checker) Name() string             { return Name }
func (c *Checker) Category() types.Category { return types.CatConfig }

// Run walks the target and inspects every configuration file it finds.
func (c *Checker) Run(ctx context.Context, target *checker.Target) ([]types.Issue, error) {
	if target == nil || target.FS == nil {
		return nil, errors.New("configcheck: target has no filesystem")
	}
	log := logging.OrNop(c.Log)
	var issues []types.Issue
	err := target.Walk(ctx, func(rel string, werr error) {
		if werr != nil {
			issues = append(issues, checker.FileIssue(types.CatConfig, rel, werr))
			return
		}
		kind := kindOf(rel)
		if kind == kindNone {
			return
		}
		b, err := target.ReadFile(rel)
		if err != nil {
			issues = append(issues, checker.FileIssue(types.CatConfig, rel, err))
			return
		}
		found, err := inspect(kind, rel, b)
		if err != nil {
			log.Debug("config file unparsable", zap.String("file", rel), zap.Error(err))
			issues = append(issues, checker.FileIssue(types.CatConfig, rel, err))
			return
		}
		issues = append(issues, found...)
	})
	if err != nil {
		return issues, fmt.Errorf("configcheck: walk: %w", err)
	}
	return issues, nil
}

type fileKind int

const (
	kindNone fileKind = iota
	kindYAML
	kindJSON
	kindDotenv
)

func kindOf(rel string) fileKind {
	base := strings.ToLower(path.Base(rel))
	switch {
	case strings.HasSuffix(base, ".yml"), strings.HasSuffix(base, ".yaml"):
		return kindYAML
	case strings.HasSuffix(base, ".json"):
		return kindJSON
	case base == ".env", strings.HasPrefix(base, ".env."), strings.HasSuffix(base, ".env"):
		return kindDotenv
	}
	return kindNone
}

func inspect(kind fileKind, rel string, b []byte) ([]types.Issue, error) {
	switch kind {
	case kindYAML:
		return inspectYAML(rel, b)
	case kindJSON:
		return inspectJSON(rel, b)
	case kindDotenv:
		return inspectDotenv(rel, b)
	}
	return nil, nil
}

func isConnectionKey(k string) bool {
	u := strings.ToUpper(k)
	for _, s := range connectionSuffixes {
		if strings.HasSuffix(u, s) {
			return true
		}
	}
	return false
}

func emptySetting(loc, key string) types.Issue {
	return types.Issue{
		Severity:    types.SevMed,
		Category:    types.CatConfig,
		Title:       "Empty connection setting",
		Location:    loc,
		Description: fmt.Sprintf("%s has no value", key),
	}
}

func inspectYAML(rel string, b []byte) ([]types.Issue, error) {
	var issues []types.Issue
	dec := yaml.NewDecoder(bytes.NewReader(b))
	for {
		var doc yaml.Node
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		walkYAML(&doc, "", func(key string, line int) {
			issues = append(issues, emptySetting(fmt.Sprintf("%s:%d", rel, line), key))
		})
	}
	return issues, nil
}

// walkYAML reports mapping keys that look like connection settings and hold
// an empty scalar or null.
func walkYAML(n *yaml.Node, prefix string, report func(key string, line int)) {
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			walkYAML(c, prefix, report)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			full := joinKey(prefix, k.Value)
			if v.Kind == yaml.ScalarNode && isConnectionKey(k.Value) &&
				(v.Tag == "!!null" || (v.Tag == "!!str" && strings.TrimSpace(v.Value) == "")) {
				report(full, k.Line)
				continue
			}
			walkYAML(v, full, report)
		}
	}
}

func inspectJSON(rel string, b []byte) ([]types.Issue, error) {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	var keys []string
	walkJSON(v, "", func(key string) { keys = append(keys, key) })
	sort.Strings(keys)
	issues := make([]types.Issue, 0, len(keys))
	for _, k := range keys {
		issues = append(issues, emptySetting(rel, k))
	}
	return issues, nil
}

func walkJSON(v any, prefix string, report func(key string)) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			full := joinKey(prefix, k)
			if isConnectionKey(k) {
				if child == nil {
					report(full)
					continue
				}
				if s, ok := child.(string); ok && strings.TrimSpace(s) == "" {
					report(full)
					continue
				}
			}
			walkJSON(child, full, report)
		}
	case []any:
		for _, child := range t {
			walkJSON(child, prefix, report)
		}
	}
}

func joinKey(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + "." + k
}

func inspectDotenv(rel string, b []byte) ([]types.Issue, error) {
	if _, err := godotenv.Parse(bytes.NewReader(b)); err != nil {
		return nil, err
	}

	var issues []types.Issue
	firstLine := map[string]int{}
	var open byte // quote of a value spanning lines, 0 when none
	sc := bufio.NewScanner(bytes.NewReader(b))
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		if open != 0 {
			if closesQuote(line, open) {
				open = 0
			}
			continue
		}
		a, ok := parseAssignment(line)
		if !ok {
			continue
		}
		open = a.open
		if prev, dup := firstLine[a.key]; dup {
			issues = append(issues, types.Issue{
				Severity:    types.SevMed,
				Category:    types.CatConfig,
				Title:       "Duplicate environment key",
				Location:    fmt.Sprintf("%s:%d", rel, n),
				Description: fmt.Sprintf("%s is already defined on line %d", a.key, prev),
			})
		} else {
			firstLine[a.key] = n
		}
		if isConnectionKey(a.key) && a.empty {
			issues = append(issues, emptySetting(fmt.Sprintf("%s:%d", rel, n), a.key))
		}
	}
	return issues, sc.Err()
}

// assignment is one KEY=value line of a dotenv file.
type assignment struct {
	key   string
	empty bool
	// open is the quote character when the value continues on later lines.
	open byte
}

// parseAssignment reads a dotenv assignment. The value is judged on this line
// alone: quoted values by their content, bare values up to an inline comment.
func parseAssignment(line string) (assignment, bool) {
	s := strings.TrimSpace(line)
	if s == "" || strings.HasPrefix(s, "#") {
		return assignment{}, false
	}
	s = strings.TrimSpace(strings.TrimPrefix(s, "export "))
	i := strings.IndexAny(s, "=:")
	if i <= 0 {
		return assignment{}, false
	}
	a := assignment{key: strings.TrimSpace(s[:i])}
	v := strings.TrimSpace(s[i+1:])
	if v != "" && (v[0] == '"' || v[0] == '\'' || v[0] == '`') {
		q := v[0]
		end := closingQuote(v[1:], q)
		if end < 0 {
			a.open = q
			return a, true
		}
		a.empty = strings.TrimSpace(v[1:1+end]) == ""
		return a, true
	}
	if j := strings.Index(v, " #"); j >= 0 {
		v = v[:j]
	}
	a.empty = strings.TrimSpace(v) == ""
	return a, true
}

// closingQuote returns the index of the first unescaped q in s, or -1.
func closingQuote(s string, q byte) int {
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && q == '"':
			i++
		case s[i] == q:
			return i
		}
	}
	return -1
}

func closesQuote(line string, q byte) bool { return closingQuote(line, q) >= 0 }
