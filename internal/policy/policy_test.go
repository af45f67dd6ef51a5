package policy

import (
	"testing"

	"github.com/m3rciful/packbot/internal/models"
)

func testLimits() Limits {
	return Limits{
		FreeMaxEmojis:   40,
		FreeMaxStickers: 30,
		PaidMaxItems:    120,
		FreeNameMin:     4,
		FreeNameMax:     12,
		PaidNameMin:     1,
		PaidNameMax:     32,
	}
}

func TestCreatePackQuota(t *testing.T) {
	l := testLimits()
	user := models.User{UserID: 1, Tier: models.TierFree, FreePackUses: 1}

	d := l.Evaluate(Request{User: user, Action: ActionCreatePack})
	if !d.Allowed {
		t.Fatalf("create with one remaining use denied: %s", d.Reason)
	}

	user.FreePackUses = 0
	d = l.Evaluate(Request{User: user, Action: ActionCreatePack})
	if d.Allowed || d.Reason != ReasonQuotaExceeded {
		t.Fatalf("create with exhausted quota = %+v, want quota_exceeded", d)
	}
}

func TestCreatePaidPackRequiresTier(t *testing.T) {
	l := testLimits()
	free := models.User{UserID: 1, Tier: models.TierFree}
	d := l.Evaluate(Request{User: free, Action: ActionCreatePack, Paid: true})
	if d.Allowed || d.Reason != ReasonNotEntitled {
		t.Fatalf("paid create by free user = %+v, want not_entitled", d)
	}

	for _, tier := range []models.Tier{models.TierPaid, models.TierAdminExempt} {
		u := models.User{UserID: 2, Tier: tier, PaidPackUses: 1}
		if d := l.Evaluate(Request{User: u, Action: ActionCreatePack, Paid: true}); !d.Allowed {
			t.Fatalf("paid create by %s denied: %s", tier, d.Reason)
		}
	}
}

func TestCreatePaidPackSpendsPurchasedSlots(t *testing.T) {
	l := testLimits()

	// A paid tier without a purchased slot is out of quota; two interleaved
	// creates on one slot must not both pass the commit-time check.
	paid := models.User{UserID: 1, Tier: models.TierPaid, PaidPackUses: 0}
	d := l.Evaluate(Request{User: paid, Action: ActionCreatePack, Paid: true})
	if d.Allowed || d.Reason != ReasonQuotaExceeded {
		t.Fatalf("paid create with 0 slots = %+v, want quota_exceeded", d)
	}

	paid.PaidPackUses = 1
	if d := l.Evaluate(Request{User: paid, Action: ActionCreatePack, Paid: true}); !d.Allowed {
		t.Fatalf("paid create with 1 slot denied: %s", d.Reason)
	}

	exempt := models.User{UserID: 2, Tier: models.TierAdminExempt, PaidPackUses: 0}
	if d := l.Evaluate(Request{User: exempt, Action: ActionCreatePack, Paid: true}); !d.Allowed {
		t.Fatalf("admin-exempt create denied: %s", d.Reason)
	}
}

func TestAddItemCapacity(t *testing.T) {
	l := testLimits()
	user := models.User{UserID: 1, Tier: models.TierFree}

	pack := &models.Pack{Kind: models.PackKindEmoji, ItemCount: 39}
	if d := l.Evaluate(Request{User: user, Action: ActionAddItem, Pack: pack}); !d.Allowed {
		t.Fatalf("add at 39/40 denied: %s", d.Reason)
	}
	pack.ItemCount = 40
	if d := l.Evaluate(Request{User: user, Action: ActionAddItem, Pack: pack}); d.Allowed || d.Reason != ReasonCapacityExceeded {
		t.Fatalf("add at 40/40 = %+v, want capacity_exceeded", d)
	}

	sticker := &models.Pack{Kind: models.PackKindSticker, ItemCount: 30}
	if d := l.Evaluate(Request{User: user, Action: ActionAddItem, Pack: sticker}); d.Allowed {
		t.Fatal("sticker pack over free capacity should be denied")
	}

	paid := &models.Pack{Kind: models.PackKindSticker, IsPaidPack: true, ItemCount: 30}
	if d := l.Evaluate(Request{User: user, Action: ActionAddItem, Pack: paid}); !d.Allowed {
		t.Fatalf("paid pack at 30/120 denied: %s", d.Reason)
	}
}

func TestCapacityTable(t *testing.T) {
	l := testLimits()
	if got := l.Capacity(false, models.PackKindEmoji); got != 40 {
		t.Fatalf("free emoji capacity = %d", got)
	}
	if got := l.Capacity(false, models.PackKindSticker); got != 30 {
		t.Fatalf("free sticker capacity = %d", got)
	}
	if got := l.Capacity(false, models.PackKindAdaptive); got != 40 {
		t.Fatalf("adaptive capacity = %d", got)
	}
	if got := l.Capacity(true, models.PackKindEmoji); got != 120 {
		t.Fatalf("paid capacity = %d", got)
	}
}

func TestValidateName(t *testing.T) {
	l := testLimits()
	if d := l.ValidateName("abcd", false); !d.Allowed {
		t.Fatalf("4-char free name denied: %s", d.Reason)
	}
	if d := l.ValidateName("abc", false); d.Allowed || d.Reason != ReasonNameLengthInvalid {
		t.Fatalf("3-char free name = %+v", d)
	}
	if d := l.ValidateName("thirteenchars", false); d.Allowed {
		t.Fatal("13-char free name should be denied")
	}
	if d := l.ValidateName("x", true); !d.Allowed {
		t.Fatalf("1-char paid name denied: %s", d.Reason)
	}
	// Length is counted in runes, not bytes.
	if d := l.ValidateName("даша", false); !d.Allowed {
		t.Fatalf("4-rune cyrillic name denied: %s", d.Reason)
	}
}

func TestOwnerOnlyActions(t *testing.T) {
	l := testLimits()
	user := models.User{UserID: 1, Tier: models.TierPaid}
	for _, action := range []Action{ActionDuplicate, ActionAdaptive} {
		d := l.Evaluate(Request{User: user, Action: action})
		if d.Allowed || d.Reason != ReasonOwnerOnly {
			t.Fatalf("%s by non-owner = %+v, want owner_only", action, d)
		}
		if d := l.Evaluate(Request{User: user, Action: action, IsOwner: true}); !d.Allowed {
			t.Fatalf("%s by owner denied: %s", action, d.Reason)
		}
	}
}
