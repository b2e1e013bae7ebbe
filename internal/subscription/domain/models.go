package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	ScopePlatform = "platform"
	ScopeMember   = "member"
)

const (
	StatusTrialing   = "trialing"
	StatusActive     = "active"
	StatusPastDue    = "past_due"
	StatusCanceled   = "canceled"
	StatusIncomplete = "incomplete"
)

// Subscription lifecycle changes carried by webhook events.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// PlatformSubscription is the tenant's own subscription to the platform.
// One row per tenant, continuously reconciled from provider events.
type PlatformSubscription struct {
	ID                     snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID               string       `gorm:"uniqueIndex;not null" json:"tenant_id"`
	ExternalSubscriptionID string       `gorm:"index;not null" json:"external_subscription_id"`
	ExternalCustomerID     string       `json:"external_customer_id"`
	PlanID                 string       `json:"plan_id"`
	PlanName               string       `json:"plan_name"`
	Status                 string       `gorm:"not null" json:"status"`
	Amount                 int64        `json:"amount"`
	Currency               string       `json:"currency"`
	Interval               string       `gorm:"column:billing_interval" json:"interval"`
	CurrentPeriodStart     *time.Time   `json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time   `json:"current_period_end,omitempty"`
	TrialStart             *time.Time   `json:"trial_start,omitempty"`
	TrialEnd               *time.Time   `json:"trial_end,omitempty"`
	CancelAtPeriodEnd      bool         `json:"cancel_at_period_end"`
	CanceledAt             *time.Time   `json:"canceled_at,omitempty"`
	CreatedAt              time.Time    `json:"created_at"`
	UpdatedAt              time.Time    `json:"updated_at"`
}

func (PlatformSubscription) TableName() string {
	return "platform_subscriptions"
}

// MemberSubscription is a member's paid subscription to a tenant's
// community. One row per (tenant, user) pair.
type MemberSubscription struct {
	ID                     snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID               string       `gorm:"not null;uniqueIndex:ux_member_subscriptions_tenant_user" json:"tenant_id"`
	UserID                 string       `gorm:"not null;uniqueIndex:ux_member_subscriptions_tenant_user" json:"user_id"`
	ExternalSubscriptionID string       `gorm:"index;not null" json:"external_subscription_id"`
	ExternalCustomerID     string       `json:"external_customer_id"`
	PlanID                 string       `json:"plan_id"`
	PlanName               string       `json:"plan_name"`
	Status                 string       `gorm:"not null" json:"status"`
	Amount                 int64        `json:"amount"`
	Currency               string       `json:"currency"`
	Interval               string       `gorm:"column:billing_interval" json:"interval"`
	CurrentPeriodStart     *time.Time   `json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time   `json:"current_period_end,omitempty"`
	TrialStart             *time.Time   `json:"trial_start,omitempty"`
	TrialEnd               *time.Time   `json:"trial_end,omitempty"`
	CancelAtPeriodEnd      bool         `json:"cancel_at_period_end"`
	CanceledAt             *time.Time   `json:"canceled_at,omitempty"`
	CreatedAt              time.Time    `json:"created_at"`
	UpdatedAt              time.Time    `json:"updated_at"`
}

func (MemberSubscription) TableName() string {
	return "member_subscriptions"
}

// Ref identifies a subscription row found by its provider-side id,
// without committing to either scope's full model.
type Ref struct {
	ID                     snowflake.ID
	Scope                  string
	TenantID               string
	UserID                 string
	ExternalSubscriptionID string
}
