package usecase

import (
	"context"
	"testing"

	"github.com/atsocial/atsocial/internal/testutil"
)

func TestSessionLogin(t *testing.T) {
	host := testutil.NewFakeHost()
	host.AddAccount(aliceDID, "alice.test", "hunter2")
	sessions := NewSessionUsecase(host)
	ctx := context.Background()

	session, err := sessions.Login(ctx, "alice.test", "hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if session.DID != aliceDID {
		t.Errorf("expected alice's did, got %s", session.DID)
	}
	if sessions.Current() == nil {
		t.Error("a successful login must leave an active session")
	}
}

func TestSessionLoginRejected(t *testing.T) {
	host := testutil.NewFakeHost()
	host.AddAccount(aliceDID, "alice.test", "hunter2")
	sessions := NewSessionUsecase(host)

	_, err := sessions.Login(context.Background(), "alice.test", "wrong")
	if err == nil {
		t.Fatal("bad credentials must fail")
	}
	if sessions.Current() != nil {
		t.Error("a failed login must not leave a session behind")
	}
}

func TestSessionLogout(t *testing.T) {
	host := testutil.NewFakeHost()
	host.AddAccount(aliceDID, "alice.test", "hunter2")
	host.SetSession(aliceDID, "alice.test")
	sessions := NewSessionUsecase(host)

	if err := sessions.Logout(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sessions.Current() != nil {
		t.Error("logout must clear the session")
	}
}

func TestSessionRestore(t *testing.T) {
	host := testutil.NewFakeHost()
	host.AddAccount(aliceDID, "alice.test", "hunter2")
	sessions := NewSessionUsecase(host)
	ctx := context.Background()

	ok, err := sessions.Restore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("nothing to restore yet")
	}

	host.SetSession(aliceDID, "alice.test")
	ok, err = sessions.Restore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("an active session must restore")
	}
}
