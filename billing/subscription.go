package billing

import "github.com/GoCodeAlone/console/store"

// Raw processor subscription statuses this service recognizes. The processor
// vocabulary is wider than the local lifecycle, so several raw states collapse
// into one local status.
const (
	ProcessorStatusActive            = "active"
	ProcessorStatusPastDue           = "past_due"
	ProcessorStatusCanceled          = "canceled"
	ProcessorStatusCancelled         = "cancelled"
	ProcessorStatusTrialing          = "trialing"
	ProcessorStatusUnpaid            = "unpaid"
	ProcessorStatusIncomplete        = "incomplete"
	ProcessorStatusIncompleteExpired = "incomplete_expired"
)

var statusMap = map[string]store.SubscriptionStatus{
	ProcessorStatusActive:            store.SubscriptionActive,
	ProcessorStatusPastDue:           store.SubscriptionPastDue,
	ProcessorStatusCanceled:          store.SubscriptionCancelled,
	ProcessorStatusCancelled:         store.SubscriptionCancelled,
	ProcessorStatusTrialing:          store.SubscriptionTrialing,
	ProcessorStatusUnpaid:            store.SubscriptionPastDue,
	ProcessorStatusIncomplete:        store.SubscriptionTrialing,
	ProcessorStatusIncompleteExpired: store.SubscriptionCancelled,
}

// MapProcessorStatus translates a raw processor status into the local
// lifecycle status. A pending cancellation wins over the raw status so the
// console reflects it immediately. Unrecognized raw statuses map to active:
// cutting a tenant off over a vocabulary gap is worse than briefly
// over-granting, so the mapping fails open.
func MapProcessorStatus(raw string, cancelAtPeriodEnd bool) store.SubscriptionStatus {
	if cancelAtPeriodEnd {
		return store.SubscriptionCancelled
	}
	if s, ok := statusMap[raw]; ok {
		return s
	}
	return store.SubscriptionActive
}
