package auth

import (
	"testing"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("ride-link-pass-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if hash == "" {
		t.Fatal("Expected hash to be generated")
	}
	if hash == "ride-link-pass-1" {
		t.Fatal("Hash should not equal plain password")
	}
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("ride-link-pass-1")
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	if err := CheckPassword(hash, "ride-link-pass-1"); err != nil {
		t.Errorf("Expected password to match, got error: %v", err)
	}
	if err := CheckPassword(hash, "some-other-pass"); err == nil {
		t.Error("Expected error for wrong password")
	}
}
