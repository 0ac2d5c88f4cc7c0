package utils

import "testing"

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("short"); err == nil {
		t.Fatalf("expected error for short password")
	}
	if err := ValidatePassword("alllowercase1!"); err == nil {
		t.Fatalf("expected error for password without uppercase")
	}
	if err := ValidatePassword("NoDigitsHere!"); err == nil {
		t.Fatalf("expected error for password without digit")
	}
	if err := ValidatePassword("NoSpecial123"); err == nil {
		t.Fatalf("expected error for password without special character")
	}
	if err := ValidatePassword("Valid123!"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hashed, err := HashPassword("Valid123!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hashed == "Valid123!" {
		t.Fatalf("password must not be stored in plaintext")
	}

	if !CheckPassword(hashed, "Valid123!") {
		t.Fatalf("expected matching password to verify")
	}
	if CheckPassword(hashed, "Wrong123!") {
		t.Fatalf("expected non-matching password to fail")
	}
}

func TestGenerateUploadName_KeepsExtension(t *testing.T) {
	name := GenerateUploadName(".png")
	if len(name) != 20 {
		t.Fatalf("expected 16 random chars plus extension, got %q", name)
	}
	if name[len(name)-4:] != ".png" {
		t.Fatalf("expected .png suffix, got %q", name)
	}
}

func TestGenerateUploadName_DistinctAcrossCalls(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		name := GenerateUploadName(".jpg")
		if seen[name] {
			t.Fatalf("duplicate upload name %q", name)
		}
		seen[name] = true
	}
}
