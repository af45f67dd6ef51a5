package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jmoiron/sqlx"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/m3rciful/packbot/core/database"
	"github.com/m3rciful/packbot/internal/domain"
	"github.com/m3rciful/packbot/internal/models"
	"github.com/m3rciful/packbot/internal/platform"
	"github.com/m3rciful/packbot/internal/policy"
)

// fakeAPI is an in-memory platform adapter with injectable failures. onAdd
// fires after a successful AddItem, before the store's local writes commit.
type fakeAPI struct {
	mu      sync.Mutex
	creates int
	adds    int
	removes int

	failCreate error
	failAdd    error
	onAdd      func()
}

func (f *fakeAPI) CreatePack(_ context.Context, _ int64, _, _ string, _ models.PackKind, _ platform.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return f.failCreate
	}
	f.creates++
	return nil
}

func (f *fakeAPI) AddItem(_ context.Context, _ int64, _ string, _ platform.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAdd != nil {
		return f.failAdd
	}
	f.adds++
	if f.onAdd != nil {
		f.onAdd()
	}
	return nil
}

func (f *fakeAPI) RemoveItem(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes++
	return nil
}

func (f *fakeAPI) DeletePack(_ context.Context, _ string) error { return nil }

func (f *fakeAPI) GetPack(_ context.Context, _ string) (platform.SetInfo, error) {
	return platform.SetInfo{}, domain.ErrNotFound
}

func (f *fakeAPI) BotUsername() string { return "packtestbot" }

// Small capacities keep the capacity cases cheap.
func pgTestLimits() policy.Limits {
	return policy.Limits{
		FreeMaxEmojis:   3,
		FreeMaxStickers: 2,
		PaidMaxItems:    5,
		FreeNameMin:     4,
		FreeNameMax:     12,
		PaidNameMin:     1,
		PaidNameMax:     32,
	}
}

// startPostgresStore spins up a disposable Postgres, applies the migrations,
// and wires a Store over it with the fake platform adapter.
func startPostgresStore(t *testing.T, api platform.API) (*Store, *sqlx.DB) {
	t.Helper()
	ctx := context.Background()

	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "packbot",
				"POSTGRES_PASSWORD": "packbot",
				"POSTGRES_DB":       "packbot",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() {
		if err := pg.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	host, err := pg.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://packbot:packbot@%s:%s/packbot?sslmode=disable", host, port.Port())

	if err := database.WaitForPostgres(dsn, 30*time.Second); err != nil {
		t.Fatalf("postgres not ready: %v", err)
	}
	m, err := migrate.New("file://../../migrations", dsn)
	if err != nil {
		t.Fatalf("init migrations: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	_, _ = m.Close()

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return NewStore(db, api, pgTestLimits(), 2), db
}

func countItems(t *testing.T, db *sqlx.DB, packID int64) int {
	t.Helper()
	var n int
	if err := db.Get(&n, `SELECT count(*) FROM pack_items WHERE pack_id = $1`, packID); err != nil {
		t.Fatalf("count items: %v", err)
	}
	return n
}

func itemCountColumn(t *testing.T, db *sqlx.DB, packID int64) int {
	t.Helper()
	var n int
	if err := db.Get(&n, `SELECT item_count FROM packs WHERE pack_id = $1`, packID); err != nil {
		t.Fatalf("read item_count: %v", err)
	}
	return n
}

func requireCountsInStep(t *testing.T, db *sqlx.DB, packID int64, want int) {
	t.Helper()
	if got := itemCountColumn(t, db, packID); got != want {
		t.Fatalf("item_count = %d, want %d", got, want)
	}
	if got := countItems(t, db, packID); got != want {
		t.Fatalf("item rows = %d, want %d", got, want)
	}
}

func TestStorePostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed store tests in short mode")
	}

	api := &fakeAPI{}
	st, db := startPostgresStore(t, api)
	ctx := context.Background()

	if _, err := st.GetOrCreateUser(ctx, 1); err != nil {
		t.Fatalf("provision user: %v", err)
	}
	pack, err := st.CreatePack(ctx, CreatePackParams{
		OwnerID: 1,
		Name:    "mypack",
		Title:   "My pack",
		Kind:    models.PackKindEmoji,
		First:   ItemParams{ContentRef: "f0", Emoji: "😀", Format: "static"},
	})
	if err != nil {
		t.Fatalf("create pack: %v", err)
	}

	t.Run("create pack keeps counters in step", func(t *testing.T) {
		if pack.Name != "mypack_by_packtestbot" {
			t.Fatalf("slug = %q, want free suffix", pack.Name)
		}
		requireCountsInStep(t, db, pack.PackID, 1)

		u, err := st.GetUserByTelegramID(ctx, 1)
		if err != nil {
			t.Fatalf("load user: %v", err)
		}
		if u.FreePackUses != 1 {
			t.Fatalf("free_pack_uses = %d, want 1", u.FreePackUses)
		}

		for _, ref := range []string{"f1", "f2"} {
			if _, err := st.AddItem(ctx, pack.PackID, 1, ItemParams{ContentRef: ref, Format: "static"}); err != nil {
				t.Fatalf("add %s: %v", ref, err)
			}
		}
		requireCountsInStep(t, db, pack.PackID, 3)

		// Free emoji capacity is 3 here; the commit-time check holds.
		_, err = st.AddItem(ctx, pack.PackID, 1, ItemParams{ContentRef: "f3", Format: "static"})
		if !errors.Is(err, domain.ErrCapacityExceeded) {
			t.Fatalf("add over capacity = %v, want capacity_exceeded", err)
		}
		requireCountsInStep(t, db, pack.PackID, 3)
	})

	t.Run("platform failure leaves the database untouched", func(t *testing.T) {
		api.failAdd = domain.Wrap(domain.ErrPlatformFailure, errors.New("rejected"))
		defer func() { api.failAdd = nil }()

		// Free up a slot so the policy check passes and the failure comes
		// from the platform side.
		if err := st.RemoveItem(ctx, pack.PackID, 1, lastItemID(t, db, pack.PackID)); err != nil {
			t.Fatalf("remove: %v", err)
		}
		before := countItems(t, db, pack.PackID)

		_, err := st.AddItem(ctx, pack.PackID, 1, ItemParams{ContentRef: "f4", Format: "static"})
		if !errors.Is(err, domain.ErrPlatformFailure) {
			t.Fatalf("add with failing platform = %v, want platform_failure", err)
		}
		requireCountsInStep(t, db, pack.PackID, before)

		api.failCreate = domain.Wrap(domain.ErrPlatformFailure, errors.New("rejected"))
		defer func() { api.failCreate = nil }()
		if _, err := st.GetOrCreateUser(ctx, 2); err != nil {
			t.Fatalf("provision user: %v", err)
		}
		_, err = st.CreatePack(ctx, CreatePackParams{
			OwnerID: 2, Name: "ghost", Title: "Ghost", Kind: models.PackKindEmoji,
			First: ItemParams{ContentRef: "g0", Format: "static"},
		})
		if !errors.Is(err, domain.ErrPlatformFailure) {
			t.Fatalf("create with failing platform = %v, want platform_failure", err)
		}
		var packs int
		if err := db.Get(&packs, `SELECT count(*) FROM packs WHERE owner_user_id = 2`); err != nil {
			t.Fatalf("count packs: %v", err)
		}
		if packs != 0 {
			t.Fatalf("pack row created despite platform failure")
		}
		u, err := st.GetUserByTelegramID(ctx, 2)
		if err != nil {
			t.Fatalf("load user: %v", err)
		}
		if u.FreePackUses != 2 {
			t.Fatalf("free_pack_uses = %d, want untouched 2", u.FreePackUses)
		}
	})

	t.Run("local failure after platform success is inconsistent", func(t *testing.T) {
		before := countItems(t, db, pack.PackID)

		// Cancelling the context after the platform call makes every
		// following local write fail inside the open transaction.
		cctx, cancel := context.WithCancel(context.Background())
		api.onAdd = cancel
		defer func() { api.onAdd = nil }()

		_, err := st.AddItem(cctx, pack.PackID, 1, ItemParams{ContentRef: "f5", Format: "static"})
		if !errors.Is(err, domain.ErrInconsistentState) {
			t.Fatalf("add with failing local side = %v, want inconsistent_state", err)
		}
		requireCountsInStep(t, db, pack.PackID, before)
	})

	t.Run("remove reports missing items", func(t *testing.T) {
		itemID := lastItemID(t, db, pack.PackID)
		before := countItems(t, db, pack.PackID)
		removesBefore := api.removes

		if err := st.RemoveItem(ctx, pack.PackID, 1, itemID); err != nil {
			t.Fatalf("remove: %v", err)
		}
		requireCountsInStep(t, db, pack.PackID, before-1)

		// The repeat is reported, never silently absorbed, and never
		// reaches the platform again.
		err := st.RemoveItem(ctx, pack.PackID, 1, itemID)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("repeat remove = %v, want not_found", err)
		}
		if api.removes != removesBefore+1 {
			t.Fatalf("platform removes = %d, want %d", api.removes, removesBefore+1)
		}
	})

	t.Run("paid create spends purchased slots", func(t *testing.T) {
		if _, err := st.GetOrCreateUser(ctx, 3); err != nil {
			t.Fatalf("provision user: %v", err)
		}
		params := CreatePackParams{
			OwnerID: 3, Name: "custom", Title: "Custom", Kind: models.PackKindEmoji, Paid: true,
			First: ItemParams{ContentRef: "c0", Format: "static"},
		}

		if _, err := st.CreatePack(ctx, params); !errors.Is(err, domain.ErrNotEntitled) {
			t.Fatalf("paid create on free tier = %v, want not_entitled", err)
		}
		if err := st.SetTier(ctx, 3, models.TierPaid); err != nil {
			t.Fatalf("set tier: %v", err)
		}
		if _, err := st.CreatePack(ctx, params); !errors.Is(err, domain.ErrQuotaExceeded) {
			t.Fatalf("paid create without a slot = %v, want quota_exceeded", err)
		}
		if err := st.GrantUses(ctx, 3, 0, 1); err != nil {
			t.Fatalf("grant slot: %v", err)
		}
		if _, err := st.CreatePack(ctx, params); err != nil {
			t.Fatalf("paid create with a slot: %v", err)
		}
		u, err := st.GetUserByTelegramID(ctx, 3)
		if err != nil {
			t.Fatalf("load user: %v", err)
		}
		if u.PaidPackUses != 0 {
			t.Fatalf("paid_pack_uses = %d, want 0 after the create", u.PaidPackUses)
		}
		params.Name = "custom2"
		if _, err := st.CreatePack(ctx, params); !errors.Is(err, domain.ErrQuotaExceeded) {
			t.Fatalf("second create on one slot = %v, want quota_exceeded", err)
		}
	})

	t.Run("settled create skips the meter", func(t *testing.T) {
		if _, err := st.GetOrCreateUser(ctx, 4); err != nil {
			t.Fatalf("provision user: %v", err)
		}
		// A settled invoice authorizes the create on its own; the free tier
		// stays free and no purchased slot is burned.
		created, err := st.CreatePack(ctx, CreatePackParams{
			OwnerID: 4, Name: "adaptive_4", Title: "Adaptive emoji",
			Kind: models.PackKindAdaptive, Paid: true, Settled: true,
			First: ItemParams{ContentRef: "a0", Format: "static"},
		})
		if err != nil {
			t.Fatalf("settled create: %v", err)
		}
		if !created.IsPaidPack {
			t.Fatal("settled create should land in a paid pack")
		}
		u, err := st.GetUserByTelegramID(ctx, 4)
		if err != nil {
			t.Fatalf("load user: %v", err)
		}
		if u.Tier != models.TierFree || u.FreePackUses != 2 || u.PaidPackUses != 0 {
			t.Fatalf("settled create touched the meter: %+v", u)
		}
	})

	t.Run("duplicate respects paid capacity", func(t *testing.T) {
		if _, err := db.Exec(
			`INSERT INTO users (user_id, tier, free_pack_uses, paid_pack_uses) VALUES (5, 'paid', 0, 0)`); err != nil {
			t.Fatalf("seed user: %v", err)
		}
		seedPack := func(name string, items int) int64 {
			var id int64
			if err := db.Get(&id, `
				INSERT INTO packs (owner_user_id, name, title, kind, is_paid_pack, pack_link, item_count)
				VALUES (5, $1, $1, 'emoji', TRUE, 'https://t.me/addemoji/' || $1, $2)
				RETURNING pack_id`, name, items); err != nil {
				t.Fatalf("seed pack %s: %v", name, err)
			}
			for i := 0; i < items; i++ {
				if _, err := db.Exec(`
					INSERT INTO pack_items (pack_id, content_ref, kind, animated)
					VALUES ($1, $2, 'emoji', FALSE)`, id, fmt.Sprintf("%s_%d", name, i)); err != nil {
					t.Fatalf("seed item: %v", err)
				}
			}
			return id
		}

		// Paid capacity is 5 here; a 6 item source must be refused before
		// any platform call.
		big := seedPack("bigsource", 6)
		createsBefore := api.creates
		if _, err := st.DuplicatePack(ctx, big, 5, "bigcopy", "Big copy"); !errors.Is(err, domain.ErrCapacityExceeded) {
			t.Fatalf("oversized duplicate = %v, want capacity_exceeded", err)
		}
		if api.creates != createsBefore {
			t.Fatal("oversized duplicate reached the platform")
		}

		small := seedPack("smallsource", 2)
		copied, err := st.DuplicatePack(ctx, small, 5, "smallcopy", "Small copy")
		if err != nil {
			t.Fatalf("duplicate: %v", err)
		}
		requireCountsInStep(t, db, copied.PackID, 2)
	})
}

func lastItemID(t *testing.T, db *sqlx.DB, packID int64) int64 {
	t.Helper()
	var id int64
	if err := db.Get(&id, `
		SELECT item_id FROM pack_items WHERE pack_id = $1 ORDER BY item_id DESC LIMIT 1`, packID); err != nil {
		t.Fatalf("last item: %v", err)
	}
	return id
}
