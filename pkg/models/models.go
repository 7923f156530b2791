package models

import "time"

type RuleType string

const (
	RuleTypeStockLow     RuleType = "stock_low"
	RuleTypeExpiration   RuleType = "expiration"
	RuleTypeStockout     RuleType = "stockout"
	RuleTypeOverstock    RuleType = "overstock"
	RuleTypeSlowRotation RuleType = "slow_rotation"
)

type ThresholdOperator string

const (
	OperatorLt  ThresholdOperator = "lt"
	OperatorLte ThresholdOperator = "lte"
	OperatorGt  ThresholdOperator = "gt"
	OperatorGte ThresholdOperator = "gte"
	OperatorEq  ThresholdOperator = "eq"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// UrgencyRank orders priorities for escalation math. Unknown values rank lowest.
func UrgencyRank(p Priority) int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// PriorityFromRank is the inverse of UrgencyRank, clamped to the valid range.
func PriorityFromRank(rank int) Priority {
	switch {
	case rank >= 3:
		return PriorityCritical
	case rank == 2:
		return PriorityHigh
	case rank == 1:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

type Channel string

const (
	ChannelDashboard Channel = "dashboard"
	ChannelEmail     Channel = "email"
	ChannelSMS       Channel = "sms"
	ChannelWhatsApp  Channel = "whatsapp"
)

type AlertStatus string

const (
	AlertStatusActive  AlertStatus = "active"
	AlertStatusTreated AlertStatus = "treated"
	AlertStatusIgnored AlertStatus = "ignored"
)

// StockStatus is the derived per-product state used by the aggregation view
// and the CSV export.
type StockStatus string

const (
	StockStatusRupture  StockStatus = "rupture"
	StockStatusCritical StockStatus = "critical"
	StockStatusLow      StockStatus = "low"
	StockStatusOk       StockStatus = "ok"
)

type ThresholdRule struct {
	ID          string `gorm:"primaryKey"`
	TenantID    string `gorm:"index"`
	Name        string
	Description string
	RuleType    RuleType          `gorm:"type:varchar(20)"`
	Operator    ThresholdOperator `gorm:"type:varchar(5)"`
	Threshold   float64
	Priority    Priority `gorm:"type:varchar(10)"`
	// Channels the rule opts into; dispatch also requires the channel config
	// to be enabled and the tenant kill switch to be on.
	Channels   []Channel            `gorm:"serializer:json"`
	Recipients map[Channel][]string `gorm:"serializer:json"`
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Alert struct {
	ID                 string `gorm:"primaryKey"`
	TenantID           string `gorm:"index"`
	ProductCode        string `gorm:"index"`
	Message            string
	CurrentQuantity    float64
	DaysRemaining      *int
	Urgency            Priority    `gorm:"type:varchar(10)"`
	Status             AlertStatus `gorm:"type:varchar(10);index"`
	RecommendedActions []string    `gorm:"serializer:json"`
	CreatedAt          time.Time
	ResolvedAt         *time.Time
	ResolvedBy         string
	ResolutionNotes    string
	EscalationLevel    int

	// Snapshot of the rule at trigger time, so rule deletion orphans nothing.
	RuleID        string `gorm:"index"`
	RuleName      string
	RuleType      RuleType          `gorm:"type:varchar(20);index"`
	RuleOperator  ThresholdOperator `gorm:"type:varchar(5)"`
	RuleThreshold float64
	RulePriority  Priority `gorm:"type:varchar(10)"`
}

// NotificationChannelConfig holds per-channel provider settings for a tenant.
// Only the fields relevant to the channel type are meaningful; validation is
// per channel type at the settings boundary.
type NotificationChannelConfig struct {
	TenantID string  `gorm:"primaryKey"`
	Channel  Channel `gorm:"primaryKey;type:varchar(10)"`
	Enabled  bool

	// email
	SMTPHost string
	SMTPPort int
	Username string
	Password string

	// sms / whatsapp
	Provider string
	APIToken string

	SenderID        string
	MessageTemplate string
	UpdatedAt       time.Time
}

type GlobalAlertSettings struct {
	TenantID                 string `gorm:"primaryKey"`
	SystemEnabled            bool
	CheckFrequencyMinutes    int
	BusinessHoursOnly        bool
	BusinessStartTime        string // "08:30"
	BusinessEndTime          string // "19:00"
	AlertRetentionDays       int
	EscalationEnabled        bool
	EscalationDelayMinutes   int
	MaxEscalationLevel       int
	MaxAlertsPerHour         int
	DuplicateCooldownMinutes int
	UpdatedAt                time.Time
}

type Product struct {
	Code              string `gorm:"primaryKey"`
	TenantID          string `gorm:"primaryKey;index"`
	Name              string
	Category          string `gorm:"index"`
	CurrentQuantity   float64
	CriticalThreshold float64
	LowThreshold      float64
	UnitPrice         float64
	ExpiryDate        *time.Time
	UpdatedAt         time.Time
}

// DaysUntilExpiry returns the whole days between now and the product expiry
// date, negative when already expired. ok is false when no expiry is set.
func (p *Product) DaysUntilExpiry(now time.Time) (days int, ok bool) {
	if p.ExpiryDate == nil {
		return 0, false
	}
	return int(p.ExpiryDate.Sub(now).Hours() / 24), true
}

// StockStatus derives the product stock state from its own thresholds.
func (p *Product) StockStatus() StockStatus {
	switch {
	case p.CurrentQuantity <= 0:
		return StockStatusRupture
	case p.CurrentQuantity <= p.CriticalThreshold:
		return StockStatusCritical
	case p.CurrentQuantity <= p.LowThreshold:
		return StockStatusLow
	default:
		return StockStatusOk
	}
}

// StockValue is the monetary value of the remaining stock.
func (p *Product) StockValue() float64 {
	return p.CurrentQuantity * p.UnitPrice
}
