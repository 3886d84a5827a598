package auth_test

import (
	"strings"
	"testing"

	"github.com/technosupport/kindyguard/internal/auth"
)

func TestHashPassword(t *testing.T) {
	password := "correct-horse-battery-staple"

	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("Expected argon2id prefix, got %s", hash)
	}

	match, err := auth.CheckPassword(password, hash)
	if err != nil {
		t.Errorf("CheckPassword returned error: %v", err)
	}
	if !match {
		t.Errorf("Password did not match hash")
	}

	match, err = auth.CheckPassword("wrong-password", hash)
	if err != nil {
		t.Errorf("CheckPassword returned error: %v", err)
	}
	if match {
		t.Errorf("Wrong password matched hash")
	}
}

func TestCheckPassword_MalformedHash(t *testing.T) {
	if _, err := auth.CheckPassword("x", "not-a-hash"); err == nil {
		t.Error("Expected error for malformed hash")
	}
	if _, err := auth.CheckPassword("x", "$bcrypt$v=19$m=1,t=1,p=1$c$c"); err == nil {
		t.Error("Expected error for incompatible variant")
	}
}
