// Package testmodel defines the structure of the data-driven test scripts in data/data-files.
package testmodel

import (
	"fmt"
)

const (
	OpSet    = "set"
	OpGet    = "get"
	OpCAS    = "cas"
	OpDelete = "delete"
)

// Script is a sequence of operations run on one client, each with its expected outcome.
type Script struct {
	Name string `json:"name"`

	// RequireCapabilities names server capabilities the script depends on; the script is
	// skipped if any is missing.
	RequireCapabilities []string `json:"requireCapabilities"`

	Steps []Step `json:"steps"`
}

// Step is one operation. Key is relative to the script's own key prefix.
//
// For set, cas and delete, OK is the expected success flag and defaults to true. For get,
// NotFound expects the key to be absent; otherwise the result must equal Value.
type Step struct {
	Op       string `json:"op"`
	Key      string `json:"key"`
	Value    string `json:"value"`
	Token    uint64 `json:"token"`
	OK       *bool  `json:"ok"`
	NotFound bool   `json:"notFound"`
}

// ExpectOK returns the expected success flag of a set, cas or delete.
func (s Step) ExpectOK() bool {
	return s.OK == nil || *s.OK
}

func (s Step) String() string {
	switch s.Op {
	case OpGet:
		if s.NotFound {
			return fmt.Sprintf("get(%s) == not found", s.Key)
		}
		return fmt.Sprintf("get(%s) == %q", s.Key, s.Value)
	case OpSet:
		return fmt.Sprintf("set(%s, %q) == %t", s.Key, s.Value, s.ExpectOK())
	case OpCAS:
		return fmt.Sprintf("cas(%s, %q, %d) == %t", s.Key, s.Value, s.Token, s.ExpectOK())
	case OpDelete:
		return fmt.Sprintf("delete(%s, %d) == %t", s.Key, s.Token, s.ExpectOK())
	default:
		return s.Op
	}
}

// Validate checks that every step names a known operation and a key.
func (s Script) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("script %q has no steps", s.Name)
	}
	for i, step := range s.Steps {
		switch step.Op {
		case OpSet, OpGet, OpCAS, OpDelete:
		default:
			return fmt.Errorf("script %q step %d: unknown op %q", s.Name, i, step.Op)
		}
		if step.Key == "" {
			return fmt.Errorf("script %q step %d: missing key", s.Name, i)
		}
		if step.Op == OpGet && step.OK != nil {
			return fmt.Errorf("script %q step %d: get takes value or notFound, not ok", s.Name, i)
		}
		if step.Op == OpCAS && step.Token == 0 {
			return fmt.Errorf("script %q step %d: cas needs a nonzero token", s.Name, i)
		}
	}
	return nil
}
