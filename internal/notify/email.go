package notify

import "fmt"

// BudgetAlertEmail renders the subject and plain-text body for a budget
// alert. All monetary values arrive pre-formatted as decimal strings.
func BudgetAlertEmail(userName, accountName, percentUsed, budgetAmount, totalExpenses string) (subject, body string) {
	subject = fmt.Sprintf("Budget Alert for %s", accountName)
	body = fmt.Sprintf(
		"Hello %s,\n\n"+
			"You've used %s%% of your monthly budget on account %s.\n\n"+
			"Budget amount: %s\n"+
			"Spent so far:  %s\n\n"+
			"Review your spending to stay on track for the rest of the month.\n",
		userName, percentUsed, accountName, budgetAmount, totalExpenses)
	return subject, body
}
