package storage

import (
	"errors"
	"testing"

	"github.com/m3rciful/packbot/internal/domain"
)

func validSnapshot() Snapshot {
	return Snapshot{
		Users: []SnapshotUser{
			{UserID: 10, Tier: "free", FreePackUses: 2},
			{UserID: 11, Tier: "paid"},
		},
		Packs: []SnapshotPack{
			{PackID: 1, OwnerUserID: 10, Name: "smiles_by_packbot", Title: "Smiles", Kind: "emoji", ItemCount: 2},
			{PackID: 2, OwnerUserID: 11, Name: "pro", Title: "Pro", Kind: "sticker", IsPaidPack: true, ItemCount: 1},
		},
		Items: []SnapshotItem{
			{PackID: 1, ContentRef: "f1", Kind: "emoji"},
			{PackID: 1, ContentRef: "f2", Kind: "emoji"},
			{PackID: 2, ContentRef: "f3", Kind: "sticker"},
		},
		Settings: []SnapshotSetting{{Key: "payments_enabled", Value: "true"}},
	}
}

func TestValidateSnapshotAcceptsConsistentDump(t *testing.T) {
	if err := ValidateSnapshot(validSnapshot()); err != nil {
		t.Fatalf("consistent dump rejected: %v", err)
	}
}

func TestValidateSnapshotRejectsOrphanItem(t *testing.T) {
	snap := validSnapshot()
	snap.Items = append(snap.Items, SnapshotItem{PackID: 99, ContentRef: "ghost", Kind: "emoji"})
	err := ValidateSnapshot(snap)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("orphan item = %v, want validation_error", err)
	}
}

func TestValidateSnapshotRejectsUnknownOwner(t *testing.T) {
	snap := validSnapshot()
	snap.Packs[0].OwnerUserID = 404
	if err := ValidateSnapshot(snap); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown owner = %v, want validation_error", err)
	}
}

func TestValidateSnapshotRejectsCountMismatch(t *testing.T) {
	snap := validSnapshot()
	snap.Packs[0].ItemCount = 5
	if err := ValidateSnapshot(snap); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("count mismatch = %v, want validation_error", err)
	}
}

func TestValidateSnapshotRejectsBadEnums(t *testing.T) {
	snap := validSnapshot()
	snap.Users[0].Tier = "vip"
	if err := ValidateSnapshot(snap); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bad tier = %v, want validation_error", err)
	}

	snap = validSnapshot()
	snap.Packs[0].Kind = "gif"
	if err := ValidateSnapshot(snap); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bad kind = %v, want validation_error", err)
	}
}
