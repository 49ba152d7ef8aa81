package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"validation", Validation("governance: transition", "invalid status transition from %q to %q", "Draft", "Completed"),
			`governance: transition: invalid status transition from "Draft" to "Completed"`},
		{"not found", NotFound("workitem: get", "work item", "abc"), "workitem: get: work item not found: abc"},
		{"store", Store("weights: apply", errors.New("disk full")), "weights: apply: disk full"},
		{"no op", &Error{Kind: KindDependency, Msg: "phase 1 required"}, "phase 1 required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	base := Dependency("conversion: enrich", "phase 1 required")
	wrapped := fmt.Errorf("outer: %w", base)

	if !IsKind(wrapped, KindDependency) {
		t.Errorf("IsKind(wrapped, KindDependency) = false, want true")
	}
	if IsKind(wrapped, KindStore) {
		t.Errorf("IsKind(wrapped, KindStore) = true, want false")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Errorf("KindOf(plain) should be KindUnknown")
	}
	if IsKind(nil, KindUnknown) {
		t.Errorf("IsKind(nil, ...) should be false")
	}
}

func TestStore_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Store("db: open", cause)
	if !errors.Is(err, cause) {
		t.Error("Store error should unwrap to its cause")
	}
}

func TestKind_String(t *testing.T) {
	for k, want := range map[Kind]string{
		KindValidation:  "validation",
		KindNotFound:    "not_found",
		KindAlreadyDone: "already_done",
		KindDependency:  "dependency",
		KindStore:       "store",
		KindUnknown:     "unknown",
	} {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestNote(t *testing.T) {
	note, ok := Note(fmt.Errorf("outer: %w", AlreadyDone("workitem: reassign", "already owned by Ada")))
	if !ok || note != "already owned by Ada" {
		t.Errorf("Note() = %q, %v; want the already-done note", note, ok)
	}
	if _, ok := Note(Validation("op", "bad")); ok {
		t.Error("Note(validation) should report false")
	}
	if _, ok := Note(nil); ok {
		t.Error("Note(nil) should report false")
	}
}
