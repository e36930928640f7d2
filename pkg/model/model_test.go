package model

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func echoHandler(_ context.Context, input map[string]any) (any, error) {
	return input, nil
}

// TestNewSkill_Validation verifies price and timeout validation at
// definition time.
func TestNewSkill_Validation(t *testing.T) {
	tests := []struct {
		name    string
		skill   string
		opts    SkillOptions
		handler Handler
		wantErr error
	}{
		{
			name:    "valid",
			skill:   "echo",
			opts:    SkillOptions{Price: "$0.001"},
			handler: echoHandler,
		},
		{
			name:    "empty name",
			opts:    SkillOptions{Price: "$0.001"},
			handler: echoHandler,
			wantErr: ErrEmptyName,
		},
		{
			name:    "nil handler",
			skill:   "echo",
			opts:    SkillOptions{Price: "$0.001"},
			wantErr: ErrNilHandler,
		},
		{
			name:    "timeout too large",
			skill:   "echo",
			opts:    SkillOptions{Price: "$0.001", TimeoutMs: 300001},
			handler: echoHandler,
			wantErr: ErrBadTimeout,
		},
		{
			name:    "negative timeout",
			skill:   "echo",
			opts:    SkillOptions{Price: "$0.001", TimeoutMs: -1},
			handler: echoHandler,
			wantErr: ErrBadTimeout,
		},
		{
			name:    "empty group",
			skill:   "echo",
			opts:    SkillOptions{Price: "$0.001", Groups: []string{"ai", ""}},
			handler: echoHandler,
			wantErr: ErrEmptyGroup,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSkill(tt.skill, tt.opts, tt.handler)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Options.TimeoutMs != DefaultTimeoutMs {
				t.Fatalf("default timeout not applied: %d", s.Options.TimeoutMs)
			}
			if s.Parsed.Amount.String() != "0.001" {
				t.Fatalf("parsed price = %s", s.Parsed.Amount)
			}
		})
	}
}

// TestNewSkill_BadPrice verifies that a malformed price fails at definition
// time rather than at serve time.
func TestNewSkill_BadPrice(t *testing.T) {
	if _, err := NewSkill("echo", SkillOptions{Price: "three dollars"}, echoHandler); err == nil {
		t.Fatal("expected error for malformed price")
	}
}

// TestSkills_AddAndNames verifies duplicate rejection and stable name order.
func TestSkills_AddAndNames(t *testing.T) {
	skills := Skills{}

	for _, name := range []string{"zeta", "echo", "alpha"} {
		s, err := NewSkill(name, SkillOptions{Price: "$0.01"}, echoHandler)
		if err != nil {
			t.Fatalf("NewSkill(%q) returned error: %v", name, err)
		}
		if err := skills.Add(s); err != nil {
			t.Fatalf("Add(%q) returned error: %v", name, err)
		}
	}

	dup, _ := NewSkill("echo", SkillOptions{Price: "$0.01"}, echoHandler)
	if err := skills.Add(dup); !errors.Is(err, ErrDupSkill) {
		t.Fatalf("duplicate Add error = %v, want ErrDupSkill", err)
	}

	want := []string{"alpha", "echo", "zeta"}
	if got := skills.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
}
