package notifications

import (
	"fmt"
	"time"
)

const displayLayout = "02/01/2006 15:04"

// ReminderText renders the upcoming-return reminder for one loan.
func ReminderText(loanID uint64, serial string, due, now time.Time) (title, message string) {
	left := due.Sub(now)
	var in string
	if left <= time.Hour {
		in = fmt.Sprintf("%d minutes", int(left.Minutes()))
	} else {
		in = fmt.Sprintf("%d hours", int(left.Hours()))
	}
	title = "Reminder: return due in " + in
	message = fmt.Sprintf("Loan #%d\nEquipment: %s\nReturn by: %s\n\nPlease get ready to return the equipment on time.",
		loanID, serial, due.Format(displayLayout))
	return title, message
}

// OverdueText renders the overdue alert for one loan.
func OverdueText(loanID uint64, serial string, due, now time.Time) (title, message string) {
	late := now.Sub(due)
	var by string
	if days := int(late.Hours()) / 24; days > 0 {
		by = fmt.Sprintf("%d day(s)", days)
	} else {
		by = fmt.Sprintf("%d hour(s)", int(late.Hours()))
	}
	title = "Loan overdue by " + by
	message = fmt.Sprintf("Loan #%d\nEquipment: %s\nExpected return: %s\nOverdue by: %s\n\n"+
		"ACTION REQUIRED: return the equipment as soon as possible.\nContact the coordination office if there is a problem.",
		loanID, serial, due.Format(displayLayout), by)
	return title, message
}
