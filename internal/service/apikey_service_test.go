package service

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestAPIKeyService_IssueAndValidate(t *testing.T) {
	repo := newFakeKeyRepo()
	svc := NewAPIKeyService(repo)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, 1, "laptop agent")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if !strings.HasPrefix(issued.Key, "cal_") {
		t.Fatalf("unexpected key shape %q", issued.Key)
	}
	if issued.KeyPrefix != issued.Key[:12] {
		t.Fatalf("prefix %q does not match key %q", issued.KeyPrefix, issued.Key)
	}

	// raw key never stored
	stored, _ := repo.ListByUser(ctx, 1)
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored key, got %d", len(stored))
	}
	if stored[0].KeyHash == issued.Key || stored[0].KeyHash == "" {
		t.Fatalf("expected stored hash, got %q", stored[0].KeyHash)
	}

	userID, err := svc.Validate(ctx, issued.Key)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if userID != 1 {
		t.Fatalf("expected user 1, got %d", userID)
	}
}

func TestAPIKeyService_Validate_Rejections(t *testing.T) {
	repo := newFakeKeyRepo()
	svc := NewAPIKeyService(repo)
	ctx := context.Background()

	// wrong shape never touches storage
	if _, err := svc.Validate(ctx, "sk-not-ours"); !errors.Is(err, ErrKeyRejected) {
		t.Fatalf("expected ErrKeyRejected for foreign shape, got %v", err)
	}

	// unknown key
	if _, err := svc.Validate(ctx, "cal_"+strings.Repeat("0", 64)); !errors.Is(err, ErrKeyRejected) {
		t.Fatalf("expected ErrKeyRejected for unknown key, got %v", err)
	}

	// revoked key
	issued, err := svc.Issue(ctx, 1, "to revoke")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := svc.Revoke(ctx, 1, issued.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := svc.Validate(ctx, issued.Key); !errors.Is(err, ErrKeyRejected) {
		t.Fatalf("expected ErrKeyRejected after revoke, got %v", err)
	}
}

func TestAPIKeyService_Revoke(t *testing.T) {
	repo := newFakeKeyRepo()
	svc := NewAPIKeyService(repo)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, 1, "k")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// wrong owner
	if err := svc.Revoke(ctx, 2, issued.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign revoke, got %v", err)
	}
	// owner succeeds once
	if err := svc.Revoke(ctx, 1, issued.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	// second revoke is not found
	if err := svc.Revoke(ctx, 1, issued.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for double revoke, got %v", err)
	}
}

func TestAPIKeyService_Issue_DefaultsName(t *testing.T) {
	repo := newFakeKeyRepo()
	svc := NewAPIKeyService(repo)

	issued, err := svc.Issue(context.Background(), 1, "   ")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if issued.Name != "default key" {
		t.Fatalf("expected default name, got %q", issued.Name)
	}
}
