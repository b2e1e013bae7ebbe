package domain

import "time"

// Object is the wire shape of a subscription event's data.object.
// Routing fields may arrive either flat or under metadata; flat wins.
type Object struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	TenantID           string            `json:"tenant_id"`
	Scope              string            `json:"scope"`
	UserID             string            `json:"user_id"`
	PlanID             string            `json:"plan_id"`
	PlanName           string            `json:"plan_name"`
	Status             string            `json:"status"`
	Amount             int64             `json:"amount"`
	Currency           string            `json:"currency"`
	Interval           string            `json:"interval"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	TrialStart         int64             `json:"trial_start"`
	TrialEnd           int64             `json:"trial_end"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CanceledAt         int64             `json:"canceled_at"`
	Metadata           map[string]string `json:"metadata"`
}

func (o Object) ResolveTenantID() string {
	if o.TenantID != "" {
		return o.TenantID
	}
	return o.Metadata["tenant_id"]
}

func (o Object) ResolveScope() string {
	if o.Scope != "" {
		return o.Scope
	}
	return o.Metadata["scope"]
}

func (o Object) ResolveUserID() string {
	if o.UserID != "" {
		return o.UserID
	}
	return o.Metadata["user_id"]
}

// UnixTime converts a unix-seconds field to a nullable timestamp.
// Zero means the field was absent.
func UnixTime(seconds int64) *time.Time {
	if seconds == 0 {
		return nil
	}
	t := time.Unix(seconds, 0).UTC()
	return &t
}
