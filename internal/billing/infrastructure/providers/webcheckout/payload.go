package webcheckout

import "encoding/json"

type envelope struct {
	ID      string `json:"id" validate:"required"`
	Type    string `json:"type" validate:"required"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object" validate:"required"`
	} `json:"data"`
}

type recurring struct {
	Interval string `json:"interval"`
}

type price struct {
	ID        string    `json:"id"`
	Recurring recurring `json:"recurring"`
}

type subscriptionItem struct {
	Price              price `json:"price"`
	CurrentPeriodStart int64 `json:"current_period_start"`
	CurrentPeriodEnd   int64 `json:"current_period_end"`
}

type subscriptionObject struct {
	ID                 string            `json:"id" validate:"required"`
	Customer           string            `json:"customer"`
	Status             string            `json:"status" validate:"required"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CanceledAt         int64             `json:"canceled_at"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	Metadata           map[string]string `json:"metadata"`
	Items              struct {
		Data []subscriptionItem `json:"data"`
	} `json:"items"`
}

type invoiceLine struct {
	Period struct {
		Start int64 `json:"start"`
		End   int64 `json:"end"`
	} `json:"period"`
	Price    price             `json:"price"`
	Metadata map[string]string `json:"metadata"`
}

type invoiceObject struct {
	ID                  string            `json:"id" validate:"required"`
	Customer            string            `json:"customer"`
	CustomerEmail       string            `json:"customer_email"`
	CustomerName        string            `json:"customer_name"`
	Subscription        string            `json:"subscription"`
	BillingReason       string            `json:"billing_reason"`
	Metadata            map[string]string `json:"metadata"`
	SubscriptionDetails struct {
		Metadata map[string]string `json:"metadata"`
	} `json:"subscription_details"`
	Parent struct {
		SubscriptionDetails struct {
			Subscription string            `json:"subscription"`
			Metadata     map[string]string `json:"metadata"`
		} `json:"subscription_details"`
	} `json:"parent"`
	Lines struct {
		Data []invoiceLine `json:"data"`
	} `json:"lines"`
}

func (i invoiceObject) subscriptionID() string {
	if i.Subscription != "" {
		return i.Subscription
	}
	return i.Parent.SubscriptionDetails.Subscription
}

func (i invoiceObject) userIDCandidates() []string {
	out := []string{
		i.SubscriptionDetails.Metadata["user_id"],
		i.Parent.SubscriptionDetails.Metadata["user_id"],
		i.Metadata["user_id"],
	}
	for _, l := range i.Lines.Data {
		out = append(out, l.Metadata["user_id"])
	}
	return out
}

type checkoutSessionObject struct {
	ID                string            `json:"id" validate:"required"`
	Mode              string            `json:"mode" validate:"required"`
	PaymentStatus     string            `json:"payment_status"`
	ClientReferenceID string            `json:"client_reference_id"`
	CustomerEmail     string            `json:"customer_email"`
	Metadata          map[string]string `json:"metadata"`
	CustomerDetails   struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"customer_details"`
}
