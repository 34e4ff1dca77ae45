package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flappyfish-backend/internal/domain"
)

func newTestPurchaseService(store *memStore) *PurchaseService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPurchaseService(store, store, logger)
}

func webhook(eventType, userID, productID string) domain.RevenueCatWebhook {
	return domain.RevenueCatWebhook{
		AppUserID: userID,
		Event: domain.RevenueCatEvent{
			Type:          eventType,
			AppUserID:     userID,
			ProductID:     productID,
			TransactionID: "txn-1",
			Store:         "APP_STORE",
		},
	}
}

func TestRecordPurchase(t *testing.T) {
	store := newMemStore()
	svc := newTestPurchaseService(store)
	ctx := context.Background()

	amount := 4.99
	rec, err := svc.RecordPurchase(ctx, domain.RecordPurchaseRequest{
		UserID:        "user-1",
		ProductID:     "coins_500",
		TransactionID: "txn-abc",
		Platform:      "ios",
		Amount:        &amount,
		Currency:      "USD",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "coins_500", rec.ProductID)
	assert.False(t, rec.CreatedAt.IsZero())

	records, err := svc.ListPurchases(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rec.ID, records[0].ID)
}

func TestListPurchasesNewestFirst(t *testing.T) {
	store := newMemStore()
	svc := newTestPurchaseService(store)
	ctx := context.Background()

	first, err := svc.RecordPurchase(ctx, domain.RecordPurchaseRequest{
		UserID: "user-1", ProductID: "coins_100", TransactionID: "t1", Platform: "ios",
	})
	require.NoError(t, err)
	second, err := svc.RecordPurchase(ctx, domain.RecordPurchaseRequest{
		UserID: "user-1", ProductID: "coins_500", TransactionID: "t2", Platform: "ios",
	})
	require.NoError(t, err)

	records, err := svc.ListPurchases(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, second.ID, records[0].ID)
	assert.Equal(t, first.ID, records[1].ID)
}

func TestWebhookCoinBundle(t *testing.T) {
	store := newMemStore()
	store.progress["user-1"] = domain.PlayerProgress{UserID: "user-1", Coins: 100, TotalCoinsEarned: 100}
	svc := newTestPurchaseService(store)
	ctx := context.Background()

	err := svc.HandleRevenueCat(ctx, webhook(domain.EventInitialPurchase, "user-1", "coins_500"))
	require.NoError(t, err)

	p := store.progress["user-1"]
	assert.Equal(t, int64(650), p.Coins)
	assert.Equal(t, int64(650), p.TotalCoinsEarned)

	records, err := svc.ListPurchases(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.EventInitialPurchase, records[0].EventType)
	assert.Equal(t, "APP_STORE", records[0].Platform)
}

func TestWebhookRemoveAds(t *testing.T) {
	store := newMemStore()
	store.progress["user-1"] = domain.PlayerProgress{UserID: "user-1"}
	svc := newTestPurchaseService(store)
	ctx := context.Background()

	err := svc.HandleRevenueCat(ctx, webhook(domain.EventInitialPurchase, "user-1", domain.ProductRemoveAds))
	require.NoError(t, err)
	assert.True(t, store.progress["user-1"].AdsRemoved)

	err = svc.HandleRevenueCat(ctx, webhook(domain.EventRefund, "user-1", domain.ProductRemoveAds))
	require.NoError(t, err)
	assert.False(t, store.progress["user-1"].AdsRemoved)
}

func TestWebhookRenewalCreditsCoins(t *testing.T) {
	store := newMemStore()
	store.progress["user-1"] = domain.PlayerProgress{UserID: "user-1"}
	svc := newTestPurchaseService(store)

	err := svc.HandleRevenueCat(context.Background(), webhook(domain.EventRenewal, "user-1", "coins_100"))
	require.NoError(t, err)
	assert.Equal(t, int64(100), store.progress["user-1"].Coins)
}

func TestWebhookCancellationIsNoOp(t *testing.T) {
	store := newMemStore()
	store.progress["user-1"] = domain.PlayerProgress{UserID: "user-1", AdsRemoved: true}
	svc := newTestPurchaseService(store)

	err := svc.HandleRevenueCat(context.Background(), webhook(domain.EventCancellation, "user-1", domain.ProductRemoveAds))
	require.NoError(t, err)
	assert.True(t, store.progress["user-1"].AdsRemoved)
	assert.Empty(t, store.purchases)
}

func TestWebhookUnknownEventIgnored(t *testing.T) {
	store := newMemStore()
	svc := newTestPurchaseService(store)

	err := svc.HandleRevenueCat(context.Background(), webhook("BILLING_ISSUE", "user-1", "coins_100"))
	require.NoError(t, err)
	assert.Empty(t, store.purchases)
}

func TestWebhookUnknownProductLoggedOnly(t *testing.T) {
	store := newMemStore()
	store.progress["user-1"] = domain.PlayerProgress{UserID: "user-1"}
	svc := newTestPurchaseService(store)

	err := svc.HandleRevenueCat(context.Background(), webhook(domain.EventInitialPurchase, "user-1", "mystery_pack"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), store.progress["user-1"].Coins)
	assert.Len(t, store.purchases, 1)
}

func TestWebhookUserIDFromEvent(t *testing.T) {
	store := newMemStore()
	store.progress["user-1"] = domain.PlayerProgress{UserID: "user-1"}
	svc := newTestPurchaseService(store)

	payload := webhook(domain.EventInitialPurchase, "user-1", "coins_100")
	payload.AppUserID = ""

	err := svc.HandleRevenueCat(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, int64(100), store.progress["user-1"].Coins)
}

func TestWebhookCoinBundleUnknownPlayer(t *testing.T) {
	store := newMemStore()
	svc := newTestPurchaseService(store)

	err := svc.HandleRevenueCat(context.Background(), webhook(domain.EventInitialPurchase, "nobody", "coins_100"))
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)
}
