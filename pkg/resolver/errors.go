package resolver

import (
	"fmt"
	"strings"
)

// SchemaCycleError reports a library entry that references itself, directly
// or transitively, or nesting deeper than the configured limit.
type SchemaCycleError struct {
	// Chain lists the library keys on the resolution stack, ending with the
	// key that closed the cycle.
	Chain []string
	// Limit is set when the depth guard fired instead of the visited set.
	Limit int
}

func (e *SchemaCycleError) Error() string {
	if e == nil {
		return "resolver: schema cycle"
	}
	if e.Limit > 0 {
		if len(e.Chain) == 0 {
			return fmt.Sprintf("resolver: control nesting exceeds depth %d", e.Limit)
		}
		return fmt.Sprintf("resolver: control nesting exceeds depth %d (%s)", e.Limit, strings.Join(e.Chain, " -> "))
	}
	return "resolver: schema cycle detected: " + strings.Join(e.Chain, " -> ")
}

type resolveState struct {
	stack   []string
	inStack map[string]struct{}
}

func (s *resolveState) push(key string) {
	s.stack = append(s.stack, key)
	if s.inStack == nil {
		s.inStack = make(map[string]struct{})
	}
	s.inStack[key] = struct{}{}
}

func (s *resolveState) pop(key string) {
	if len(s.stack) == 0 {
		return
	}
	last := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	delete(s.inStack, last)
	if key != last {
		delete(s.inStack, key)
	}
}

func (s *resolveState) contains(key string) bool {
	_, ok := s.inStack[key]
	return ok
}

func (s *resolveState) chain(closing string) []string {
	out := append([]string(nil), s.stack...)
	if closing != "" {
		out = append(out, closing)
	}
	return out
}
