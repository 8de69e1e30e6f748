package models

import "time"

// Alert event type constants
const (
	EventTradeOpened   = "TRADE_OPENED"
	EventTradeClosed   = "TRADE_CLOSED"
	EventRiskAlert     = "RISK_ALERT"
	EventEngineStarted = "ENGINE_STARTED"
	EventEngineStopped = "ENGINE_STOPPED"
	EventDailySummary  = "DAILY_SUMMARY"
)

// Alert severity constants
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// AlertEvent is an outbound notification published for downstream
// consumers (chat bridges, dashboards). Delivery is best effort.
type AlertEvent struct {
	EventType string        `json:"event_type"`
	Severity  string        `json:"severity"`
	Symbol    string        `json:"symbol,omitempty"`
	Message   string        `json:"message"`
	Trade     *ActiveTrade  `json:"trade,omitempty"`
	Outcome   *TradeOutcome `json:"outcome,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
