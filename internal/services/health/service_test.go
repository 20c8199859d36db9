package health

import (
	"context"
	"testing"
)

func TestStatusWithoutDatabase(t *testing.T) {
	svc := NewService(nil, false)
	status := svc.Status(context.Background())

	if status["ok"] != true {
		t.Fatalf("expected ok=true, got %v", status["ok"])
	}
	if status["db"] != "memory" {
		t.Fatalf("expected db=memory, got %v", status["db"])
	}
	if status["queue"] != false {
		t.Fatalf("expected queue=false, got %v", status["queue"])
	}
}
