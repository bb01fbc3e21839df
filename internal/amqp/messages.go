package amqp

import (
	"encoding/json"
	"time"

	"fintrack/internal/services"
)

// BudgetAlertMessage is the queue representation of a fired budget alert.
// Monetary fields are decimal strings; the consumer renders them verbatim.
type BudgetAlertMessage struct {
	BudgetID      string    `json:"budget_id"`
	UserID        string    `json:"user_id"`
	Email         string    `json:"email"`
	UserName      string    `json:"user_name"`
	AccountName   string    `json:"account_name"`
	PercentUsed   string    `json:"percent_used"`
	BudgetAmount  string    `json:"budget_amount"`
	TotalExpenses string    `json:"total_expenses"`
	Period        string    `json:"period"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewBudgetAlertMessage converts an engine alert into its wire form.
func NewBudgetAlertMessage(alert services.BudgetAlert) *BudgetAlertMessage {
	return &BudgetAlertMessage{
		BudgetID:      alert.BudgetID,
		UserID:        alert.UserID,
		Email:         alert.Email,
		UserName:      alert.UserName,
		AccountName:   alert.AccountName,
		PercentUsed:   alert.PercentUsed.StringFixed(1),
		BudgetAmount:  alert.BudgetAmount.String(),
		TotalExpenses: alert.TotalExpenses.String(),
		Period:        string(alert.Period),
		Timestamp:     time.Now(),
	}
}

func (m *BudgetAlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetAlertMessageFromJSON(data []byte) (*BudgetAlertMessage, error) {
	var msg BudgetAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
