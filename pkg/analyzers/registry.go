/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: registry.go
Description: Named analyzer registry. The schema loader resolves the analyzer named on
an element through a Registry; Default holds the built in analyzers.
*/

package analyzers

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kleascm/akaylee-cracker/pkg/dom"
)

// Registry maps case insensitive names to analyzers
type Registry struct {
	mu        sync.RWMutex
	analyzers map[string]dom.Analyzer
	aliases   map[string]string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		analyzers: make(map[string]dom.Analyzer),
		aliases:   make(map[string]string),
	}
}

// Register adds an analyzer under its own name and any aliases
func (r *Registry) Register(a dom.Analyzer, aliases ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(a.Name())
	if _, exists := r.analyzers[key]; exists {
		return fmt.Errorf("analyzer %s already registered", a.Name())
	}
	r.analyzers[key] = a
	for _, alias := range aliases {
		r.aliases[strings.ToLower(alias)] = key
	}
	return nil
}

// Lookup finds an analyzer by name or alias
func (r *Registry) Lookup(name string) (dom.Analyzer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := strings.ToLower(name)
	if target, ok := r.aliases[key]; ok {
		key = target
	}
	a, ok := r.analyzers[key]
	if !ok {
		return nil, fmt.Errorf("unknown analyzer: %s", name)
	}
	return a, nil
}

// Names returns the registered analyzer names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.analyzers))
	for _, a := range r.analyzers {
		names = append(names, a.Name())
	}
	sort.Strings(names)
	return names
}

// Aliases returns the aliases registered for name
func (r *Registry) Aliases(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	key := strings.ToLower(name)
	for alias, target := range r.aliases {
		if target == key {
			out = append(out, alias)
		}
	}
	sort.Strings(out)
	return out
}

// Default returns a registry holding the built in analyzers
func Default() *Registry {
	r := NewRegistry()
	_ = r.Register(NewStringTokenAnalyzer(""), "stringtokenanalyzer", "stringtoken.StringTokenAnalyzer")
	_ = r.Register(NewMarkupAnalyzer(), "xml", "html", "XmlAnalyzer")
	return r
}
