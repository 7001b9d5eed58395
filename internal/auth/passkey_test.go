package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-webauthn/webauthn/webauthn"
)

func testPasskeyStore(t *testing.T) (*PasskeyStore, *User) {
	t.Helper()
	d := testDB(t)
	u := mustRegister(t, NewUserStore(d), "alice")
	return NewPasskeyStore(d), u
}

func TestPasskeySaveAndList(t *testing.T) {
	store, u := testPasskeyStore(t)
	ctx := context.Background()

	cred := &webauthn.Credential{
		ID:        []byte("test-credential-id"),
		PublicKey: []byte("test-public-key"),
	}

	if err := store.Save(ctx, u.ID, "My Laptop", cred); err != nil {
		t.Fatalf("save: %v", err)
	}

	stored, err := store.ListByUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("got %d credentials, want 1", len(stored))
	}
	if stored[0].Name != "My Laptop" {
		t.Errorf("name = %q, want %q", stored[0].Name, "My Laptop")
	}
	if stored[0].UserID != u.ID {
		t.Errorf("user id = %q, want %q", stored[0].UserID, u.ID)
	}
	if string(stored[0].Credential.ID) != string(cred.ID) {
		t.Errorf("credential ID mismatch")
	}
}

func TestPasskeyWebAuthnCredentials(t *testing.T) {
	store, u := testPasskeyStore(t)
	ctx := context.Background()

	cred1 := &webauthn.Credential{ID: []byte("cred-1"), PublicKey: []byte("key-1")}
	cred2 := &webauthn.Credential{ID: []byte("cred-2"), PublicKey: []byte("key-2")}

	if err := store.Save(ctx, u.ID, "Key 1", cred1); err != nil {
		t.Fatalf("save 1: %v", err)
	}
	if err := store.Save(ctx, u.ID, "Key 2", cred2); err != nil {
		t.Fatalf("save 2: %v", err)
	}

	creds, err := store.WebAuthnCredentials(ctx, u.ID)
	if err != nil {
		t.Fatalf("webauthn credentials: %v", err)
	}
	if len(creds) != 2 {
		t.Fatalf("got %d credentials, want 2", len(creds))
	}

	pu := NewPasskeyUser(u, creds)
	if string(pu.WebAuthnID()) != u.ID {
		t.Errorf("webauthn id = %q, want %q", pu.WebAuthnID(), u.ID)
	}
	if pu.WebAuthnName() != "alice" || len(pu.WebAuthnCredentials()) != 2 {
		t.Errorf("unexpected passkey user %q with %d credentials", pu.WebAuthnName(), len(pu.WebAuthnCredentials()))
	}
}

func TestPasskeyUpdate(t *testing.T) {
	store, u := testPasskeyStore(t)
	ctx := context.Background()

	cred := &webauthn.Credential{ID: []byte("cred-1"), PublicKey: []byte("key-1")}
	if err := store.Save(ctx, u.ID, "Key", cred); err != nil {
		t.Fatalf("save: %v", err)
	}

	cred.Authenticator.SignCount = 7
	if err := store.Update(ctx, u.ID, cred); err != nil {
		t.Fatalf("update: %v", err)
	}

	creds, err := store.WebAuthnCredentials(ctx, u.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if creds[0].Authenticator.SignCount != 7 {
		t.Errorf("sign count = %d, want 7", creds[0].Authenticator.SignCount)
	}
}

func TestPasskeyListEmpty(t *testing.T) {
	store, _ := testPasskeyStore(t)

	stored, err := store.ListByUser(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("got %d credentials, want 0", len(stored))
	}
}

func TestPasskeyDelete(t *testing.T) {
	store, u := testPasskeyStore(t)
	ctx := context.Background()

	cred := &webauthn.Credential{ID: []byte("delete-me"), PublicKey: []byte("key")}
	if err := store.Save(ctx, u.ID, "Temp", cred); err != nil {
		t.Fatalf("save: %v", err)
	}

	id := fmt.Sprintf("%x", cred.ID)
	if err := store.Delete(ctx, id, "someone-else"); !errors.Is(err, ErrCredentialNotFound) {
		t.Errorf("delete with wrong owner err = %v, want ErrCredentialNotFound", err)
	}
	if err := store.Delete(ctx, id, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	stored, err := store.ListByUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("got %d credentials after delete, want 0", len(stored))
	}
}
