package domain

import "time"

// PurchaseRecord is an append-only log entry for an in-app purchase
type PurchaseRecord struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	ProductID     string    `json:"product_id"`
	TransactionID string    `json:"transaction_id"`
	Platform      string    `json:"platform"`
	Amount        *float64  `json:"amount,omitempty"`
	Currency      string    `json:"currency,omitempty"`
	EventType     string    `json:"event_type,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// RecordPurchaseRequest is the client-submitted purchase payload
type RecordPurchaseRequest struct {
	UserID        string   `json:"user_id"`
	ProductID     string   `json:"product_id"`
	TransactionID string   `json:"transaction_id"`
	Platform      string   `json:"platform"`
	Amount        *float64 `json:"amount,omitempty"`
	Currency      string   `json:"currency,omitempty"`
}

// RevenueCat webhook event types
const (
	EventInitialPurchase = "INITIAL_PURCHASE"
	EventRenewal         = "RENEWAL"
	EventProductChange   = "PRODUCT_CHANGE"
	EventCancellation    = "CANCELLATION"
	EventRefund          = "REFUND"
)

// ProductRemoveAds is the entitlement product that disables ads
const ProductRemoveAds = "remove_ads"

// CoinBundles maps purchasable coin products to the amount credited,
// bonus included.
var CoinBundles = map[string]int64{
	"coins_100":  100,
	"coins_500":  550,
	"coins_1000": 1200,
}

// RevenueCatWebhook is the payload RevenueCat posts to the webhook endpoint
type RevenueCatWebhook struct {
	APIVersion string          `json:"api_version,omitempty"`
	AppUserID  string          `json:"app_user_id"`
	Event      RevenueCatEvent `json:"event"`
}

// RevenueCatEvent carries the subscription event details
type RevenueCatEvent struct {
	Type          string `json:"type"`
	ID            string `json:"id,omitempty"`
	AppUserID     string `json:"app_user_id,omitempty"`
	ProductID     string `json:"product_id"`
	TransactionID string `json:"transaction_id,omitempty"`
	Store         string `json:"store,omitempty"`
	Environment   string `json:"environment,omitempty"`
}

// UserID resolves the player the event applies to; some senders put it on
// the envelope, others on the event itself.
func (w *RevenueCatWebhook) UserID() string {
	if w.AppUserID != "" {
		return w.AppUserID
	}
	return w.Event.AppUserID
}
