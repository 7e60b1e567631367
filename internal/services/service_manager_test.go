package services

import (
	"context"
	"testing"

	"github.com/SAP-F-2025/test-attempt-service/internal/validator"
)

func TestServiceManager_Lifecycle(t *testing.T) {
	env := newTestEnv(sampleDefinition())
	ctx := context.Background()

	if err := env.manager.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	if err := env.manager.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}

	if err := env.manager.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := env.manager.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
	if err := env.manager.HealthCheck(ctx); err == nil {
		t.Error("expected HealthCheck to fail after shutdown")
	}
}

func TestServiceManager_RequiresRepository(t *testing.T) {
	manager := NewServiceManager(nil, nil, testLogger(), validator.New(), ServiceManagerConfig{})
	if err := manager.Initialize(context.Background()); err == nil {
		t.Fatal("expected error without repository")
	}
	if err := manager.HealthCheck(context.Background()); err == nil {
		t.Error("expected HealthCheck to fail before initialization")
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic when accessing services before initialization")
		}
	}()
	manager.Attempt()
}
