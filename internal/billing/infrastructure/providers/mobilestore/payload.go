package mobilestore

type payload struct {
	Event storeEvent `json:"event"`
}

type attribute struct {
	Value string `json:"value"`
}

type attributes map[string]attribute

func (a attributes) value(key string) string {
	return a[key].Value
}

type storeEvent struct {
	ID                    string     `json:"id" validate:"required"`
	Type                  string     `json:"type" validate:"required"`
	AppUserID             string     `json:"app_user_id"`
	OriginalAppUserID     string     `json:"original_app_user_id"`
	Aliases               []string   `json:"aliases"`
	ProductID             string     `json:"product_id"`
	PeriodType            string     `json:"period_type"`
	PurchasedAtMs         int64      `json:"purchased_at_ms"`
	ExpirationAtMs        int64      `json:"expiration_at_ms"`
	EventTimestampMs      int64      `json:"event_timestamp_ms"`
	TransactionID         string     `json:"transaction_id"`
	OriginalTransactionID string     `json:"original_transaction_id"`
	SubscriberAttributes  attributes `json:"subscriber_attributes"`
}

func (e storeEvent) userIDCandidates() []string {
	return append([]string{e.AppUserID, e.OriginalAppUserID}, e.Aliases...)
}

// activeStatus is the raw status for an event that keeps the subscription alive.
func (e storeEvent) activeStatus() string {
	if e.PeriodType == "TRIAL" {
		return "trialing"
	}
	return "active"
}
