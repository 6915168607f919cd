package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"couple-sync-backend/internal/models"
)

type coupleEnv struct {
	couples *FakeCoupleStore
	users   *FakeUserStore
	widgets *FakeWidgetStore
	hub     *FakeHub
	relay   *FakeRelay
	sync    *SyncController
	service *CoupleService
}

func newCoupleEnv(t *testing.T, userIDs ...string) *coupleEnv {
	t.Helper()
	env := &coupleEnv{
		couples: NewFakeCoupleStore(),
		users:   NewFakeUserStore(),
		widgets: NewFakeWidgetStore(),
		hub:     NewFakeHub(),
		relay:   NewFakeRelay(),
	}
	env.sync = NewSyncController(env.couples, env.widgets, env.hub, env.relay)
	env.service = NewCoupleService(env.couples, env.users, env.widgets, env.sync)
	for _, id := range userIDs {
		if _, err := env.users.Upsert(context.Background(), id, id); err != nil {
			t.Fatalf("failed to seed user %s: %v", id, err)
		}
	}
	return env
}

func TestCreateCouple(t *testing.T) {
	env := newCoupleEnv(t, "alice")
	ctx := context.Background()

	couple, err := env.service.CreateCouple(ctx, "alice")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if len(couple.MemberIDs) != 1 || couple.MemberIDs[0] != "alice" {
		t.Fatalf("expected alice as sole member, got %v", couple.MemberIDs)
	}
	if len(couple.Code) != codeLength {
		t.Errorf("expected %d-char code, got %q", codeLength, couple.Code)
	}

	profile, err := env.users.GetByID(ctx, "alice")
	if err != nil {
		t.Fatalf("failed to reload profile: %v", err)
	}
	if profile.CoupleID == nil || *profile.CoupleID != couple.ID {
		t.Errorf("expected profile to point at %s, got %v", couple.ID, profile.CoupleID)
	}

	if state := DeriveState(couple, "alice"); state.Kind != StateCreatedWaiting {
		t.Errorf("expected created_waiting after create, got %q", state.Kind)
	}

	ensured := env.relay.Ensured()
	if len(ensured) != 1 || ensured[0] != couple.ID {
		t.Errorf("expected the signal record ensured on create, got %v", ensured)
	}
}

func TestJoinByCodeNormalizesInput(t *testing.T) {
	env := newCoupleEnv(t, "alice", "bob")
	ctx := context.Background()

	couple, err := env.service.CreateCouple(ctx, "alice")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Codes are shared verbally; lowercase and padding must still land.
	lowered := "  " + strings.ToLower(couple.Code) + " "
	joined, err := env.service.JoinByCode(ctx, "bob", lowered)
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}

	if len(joined.MemberIDs) != 2 {
		t.Fatalf("expected two members, got %v", joined.MemberIDs)
	}
	if state := DeriveState(joined, "bob"); state.Kind != StateMatched {
		t.Errorf("expected matched after join, got %q", state.Kind)
	}
	if state := DeriveState(joined, "alice"); state.Kind != StateMatched {
		t.Errorf("expected matched for the owner too, got %q", state.Kind)
	}

	if ensured := env.relay.Ensured(); len(ensured) != 2 {
		t.Errorf("expected the signal record ensured on create and join, got %v", ensured)
	}
}

func TestJoinByCodeUnknownCode(t *testing.T) {
	env := newCoupleEnv(t, "bob")

	_, err := env.service.JoinByCode(context.Background(), "bob", "ZZZZZZ")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_, err = env.service.JoinByCode(context.Background(), "bob", "   ")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on blank code, got %v", err)
	}
}

func TestJoinFullCoupleConflict(t *testing.T) {
	env := newCoupleEnv(t, "alice", "bob", "carol")
	ctx := context.Background()

	couple, err := env.service.CreateCouple(ctx, "alice")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := env.service.JoinByCode(ctx, "bob", couple.Code); err != nil {
		t.Fatalf("first join failed: %v", err)
	}

	_, err = env.service.JoinByCode(ctx, "carol", couple.Code)
	if !errors.Is(err, models.ErrCoupleFull) {
		t.Fatalf("expected ErrCoupleFull, got %v", err)
	}

	// The failed join must leave both the couple and carol untouched.
	reread, err := env.couples.GetByID(ctx, couple.ID)
	if err != nil {
		t.Fatalf("failed to reread couple: %v", err)
	}
	if len(reread.MemberIDs) != 2 {
		t.Fatalf("expected membership unchanged at two, got %v", reread.MemberIDs)
	}
	carol, err := env.users.GetByID(ctx, "carol")
	if err != nil {
		t.Fatalf("failed to reload carol: %v", err)
	}
	if carol.CoupleID != nil {
		t.Errorf("expected carol's profile untouched, got couple %v", *carol.CoupleID)
	}
}

func TestJoinIsIdempotentForMembers(t *testing.T) {
	env := newCoupleEnv(t, "alice", "bob")
	ctx := context.Background()

	couple, err := env.service.CreateCouple(ctx, "alice")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := env.service.JoinByCode(ctx, "bob", couple.Code); err != nil {
		t.Fatalf("first join failed: %v", err)
	}

	rejoined, err := env.service.JoinByCode(ctx, "bob", couple.Code)
	if err != nil {
		t.Fatalf("rejoin should be a no-op success, got %v", err)
	}
	if len(rejoined.MemberIDs) != 2 {
		t.Fatalf("expected two members after rejoin, got %v", rejoined.MemberIDs)
	}
}

func TestConcurrentJoinsAdmitOne(t *testing.T) {
	joiners := []string{"bob", "carol", "dave", "erin", "frank"}
	env := newCoupleEnv(t, append([]string{"alice"}, joiners...)...)
	ctx := context.Background()

	couple, err := env.service.CreateCouple(ctx, "alice")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan error, len(joiners))
	for _, id := range joiners {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := env.service.JoinByCode(ctx, userID, couple.Code)
			results <- err
		}(id)
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, models.ErrCoupleFull):
			conflicts++
		default:
			t.Fatalf("unexpected join error: %v", err)
		}
	}

	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	if conflicts != len(joiners)-1 {
		t.Fatalf("expected %d conflicts, got %d", len(joiners)-1, conflicts)
	}

	reread, err := env.couples.GetByID(ctx, couple.ID)
	if err != nil {
		t.Fatalf("failed to reread couple: %v", err)
	}
	if len(reread.MemberIDs) != 2 {
		t.Fatalf("expected two members after the race, got %v", reread.MemberIDs)
	}
}

func TestLeaveKeepsCoupleForRemainingMember(t *testing.T) {
	env := newCoupleEnv(t, "alice", "bob")
	ctx := context.Background()

	couple, err := env.service.CreateCouple(ctx, "alice")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := env.service.JoinByCode(ctx, "bob", couple.Code); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	if err := env.service.Leave(ctx, "bob"); err != nil {
		t.Fatalf("leave failed: %v", err)
	}

	reread, err := env.couples.GetByID(ctx, couple.ID)
	if err != nil {
		t.Fatalf("couple should survive with one member: %v", err)
	}
	if len(reread.MemberIDs) != 1 || reread.MemberIDs[0] != "alice" {
		t.Fatalf("expected alice alone, got %v", reread.MemberIDs)
	}

	bob, err := env.users.GetByID(ctx, "bob")
	if err != nil {
		t.Fatalf("failed to reload bob: %v", err)
	}
	if bob.CoupleID != nil {
		t.Errorf("expected bob's couple pointer cleared, got %v", *bob.CoupleID)
	}
	if len(env.relay.Deleted()) != 0 {
		t.Errorf("expected no signal teardown while a member remains")
	}
}

func TestLeaveDeletesEmptyCouple(t *testing.T) {
	env := newCoupleEnv(t, "alice", "bob")
	ctx := context.Background()

	couple, err := env.service.CreateCouple(ctx, "alice")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := env.service.JoinByCode(ctx, "bob", couple.Code); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	if err := env.service.Leave(ctx, "bob"); err != nil {
		t.Fatalf("bob leave failed: %v", err)
	}
	if err := env.service.Leave(ctx, "alice"); err != nil {
		t.Fatalf("alice leave failed: %v", err)
	}

	if _, err := env.couples.GetByID(ctx, couple.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected couple deleted once empty, got %v", err)
	}

	deleted := env.relay.Deleted()
	if len(deleted) != 1 || deleted[0] != couple.ID {
		t.Errorf("expected one signal teardown for %s, got %v", couple.ID, deleted)
	}
}

func TestLeaveWithoutCouple(t *testing.T) {
	env := newCoupleEnv(t, "alice")

	err := env.service.Leave(context.Background(), "alice")
	if !errors.Is(err, models.ErrNotInCouple) {
		t.Fatalf("expected ErrNotInCouple, got %v", err)
	}
}

func TestSetAnniversaryNormalizes(t *testing.T) {
	env := newCoupleEnv(t, "alice")
	ctx := context.Background()

	if _, err := env.service.CreateCouple(ctx, "alice"); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	loc := time.FixedZone("UTC-5", -5*3600)
	input := time.Date(2022, time.March, 14, 22, 15, 0, 0, loc)
	couple, err := env.service.SetAnniversary(ctx, "alice", input)
	if err != nil {
		t.Fatalf("set anniversary failed: %v", err)
	}

	if couple.Anniversary == nil {
		t.Fatal("expected anniversary to be set")
	}
	want := time.Date(2022, time.March, 15, 0, 0, 0, 0, time.UTC)
	if !couple.Anniversary.Equal(want) {
		t.Fatalf("expected %v, got %v", want, *couple.Anniversary)
	}
}

func TestCreateCoupleStoreFailures(t *testing.T) {
	storeDown := errors.New("store down")

	t.Run("code check fails", func(t *testing.T) {
		env := newCoupleEnv(t, "alice")
		env.couples.existsErr = storeDown

		if _, err := env.service.CreateCouple(context.Background(), "alice"); !errors.Is(err, storeDown) {
			t.Fatalf("expected wrapped store error, got %v", err)
		}
	})

	t.Run("create fails", func(t *testing.T) {
		env := newCoupleEnv(t, "alice")
		env.couples.createErr = storeDown

		if _, err := env.service.CreateCouple(context.Background(), "alice"); !errors.Is(err, storeDown) {
			t.Fatalf("expected wrapped store error, got %v", err)
		}
	})

	t.Run("profile link fails", func(t *testing.T) {
		env := newCoupleEnv(t, "alice")
		env.users.setCoupleErr = storeDown

		if _, err := env.service.CreateCouple(context.Background(), "alice"); !errors.Is(err, storeDown) {
			t.Fatalf("expected wrapped store error, got %v", err)
		}
		// The orphaned couple is tolerated; the user just creates again.
		profile, err := env.users.GetByID(context.Background(), "alice")
		if err != nil {
			t.Fatalf("failed to reload profile: %v", err)
		}
		if profile.CoupleID != nil {
			t.Error("expected profile left unlinked after the failure")
		}
	})
}

func TestJoinByCodeStoreFailures(t *testing.T) {
	storeDown := errors.New("store down")

	t.Run("lookup fails", func(t *testing.T) {
		env := newCoupleEnv(t, "alice", "bob")
		couple, err := env.service.CreateCouple(context.Background(), "alice")
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		env.couples.getErr = storeDown

		if _, err := env.service.JoinByCode(context.Background(), "bob", couple.Code); !errors.Is(err, storeDown) {
			t.Fatalf("expected wrapped store error, got %v", err)
		}
	})

	t.Run("join transaction fails", func(t *testing.T) {
		env := newCoupleEnv(t, "alice", "bob")
		couple, err := env.service.CreateCouple(context.Background(), "alice")
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		env.couples.joinErr = storeDown

		if _, err := env.service.JoinByCode(context.Background(), "bob", couple.Code); !errors.Is(err, storeDown) {
			t.Fatalf("expected wrapped store error, got %v", err)
		}
	})
}

func TestCreateCoupleRetriesCodeCollisions(t *testing.T) {
	env := newCoupleEnv(t, "alice", "bob")
	ctx := context.Background()

	first, err := env.service.CreateCouple(ctx, "alice")
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	second, err := env.service.CreateCouple(ctx, "bob")
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}

	if first.Code == second.Code {
		t.Fatalf("expected distinct codes, both got %q", first.Code)
	}
}
