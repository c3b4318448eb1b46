// Package transform rewrites node code fragments for the environment they
// will run in.
package transform

import (
	"regexp"
	"strings"
)

// DefaultModuleBaseURL is the CDN online fragments import packages from.
const DefaultModuleBaseURL = "https://jspm.dev"

// Policy selects how a fragment is rewritten.
type Policy int

const (
	// PolicyOnline turns a module fragment into an awaited expression that
	// can sit next to other fragments in one script.
	PolicyOnline Policy = iota
	// PolicyProject leaves the fragment as module source.
	PolicyProject
)

func (p Policy) String() string {
	switch p {
	case PolicyOnline:
		return "online"
	case PolicyProject:
		return "project"
	default:
		return "unknown"
	}
}

var (
	importRe        = regexp.MustCompile(`import\s+([\s\S]*?)\s+from\s+(?:'([@./\-\w]+)'|"([@./\-\w]+)")\s*;?`)
	exportDefaultRe = regexp.MustCompile(`\bexport\s+default\b`)
)

// Transformer rewrites node code. The zero value uses DefaultModuleBaseURL.
//
// Fragments are not parsed: imports must be single default-binding
// statements and the fragment must carry one export default. Anything else
// passes through and fails where the generated code runs.
type Transformer struct {
	ModuleBaseURL string
}

// New returns a Transformer resolving online imports against baseURL.
func New(baseURL string) *Transformer {
	return &Transformer{ModuleBaseURL: baseURL}
}

// Transform applies policy to code.
func (t *Transformer) Transform(code string, policy Policy) string {
	if policy == PolicyProject {
		return code
	}
	return Wrap(RewriteExport(t.RewriteImports(code)))
}

// RewriteImports replaces every `import x from 'mod'` with a dynamic import
// of mod from the module base URL.
func (t *Transformer) RewriteImports(code string) string {
	base := strings.TrimRight(t.baseURL(), "/")
	return importRe.ReplaceAllStringFunc(code, func(stmt string) string {
		m := importRe.FindStringSubmatch(stmt)
		mod := m[2]
		if mod == "" {
			mod = m[3]
		}
		return "const " + m[1] + " = (await import('" + base + "/" + mod + "')).default;"
	})
}

func (t *Transformer) baseURL() string {
	if t == nil || t.ModuleBaseURL == "" {
		return DefaultModuleBaseURL
	}
	return t.ModuleBaseURL
}

// RewriteExport replaces the first `export default` with `return`. Code
// without one is returned unchanged, so the rewrite is idempotent.
func RewriteExport(code string) string {
	loc := exportDefaultRe.FindStringIndex(code)
	if loc == nil {
		return code
	}
	return code[:loc[0]] + "return" + code[loc[1]:]
}

// Wrap turns a function body into an awaited immediately-invoked async
// function so each fragment gets its own scope.
func Wrap(body string) string {
	return "await (async function() {\n" + body + "\n}())"
}
