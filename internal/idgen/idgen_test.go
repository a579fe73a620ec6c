package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNew_IsUUID(t *testing.T) {
	if _, err := uuid.Parse(New()); err != nil {
		t.Fatalf("New() is not a UUID: %v", err)
	}
}

func TestWithPrefix(t *testing.T) {
	id := WithPrefix("plan_")
	if !strings.HasPrefix(id, "plan_") {
		t.Fatalf("expected plan_ prefix, got %q", id)
	}
	if len(id) != len("plan_")+24 {
		t.Fatalf("expected 24 hex chars after prefix, got %q", id)
	}
	if WithPrefix("plan_") == id {
		t.Fatal("ids should be unique")
	}
}
