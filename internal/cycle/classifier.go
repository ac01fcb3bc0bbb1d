package cycle

import "time"

// State classifies an account's current billing cycle.
type State string

const (
	// StatementGenerated: a payment is owed and nothing indicates it was made.
	StatementGenerated State = "STATEMENT_GENERATED"
	// PaymentScheduled: the user marked the statement paid, or the statement
	// is recent and the balance no longer says "owed".
	PaymentScheduled State = "PAYMENT_SCHEDULED"
	// PaidAwaitingStatement: the balance is in credit, waiting for the next cycle.
	PaidAwaitingStatement State = "PAID_AWAITING_STATEMENT"
	// Dormant: no meaningful activity on the account.
	Dormant State = "DORMANT"
)

// recentStatementDays is the window inside which a statement counts as
// "recent". Exactly 30 days falls into the old-statement branch.
const recentStatementDays = 30

// Classify derives the cycle state from statement and payment facts. It is
// pure and total: every input combination, including all-nil dates, maps to
// a state. Recomputed on demand, never stored.
//
// Precedence: a fully zeroed account is dormant; a recent statement is owed
// unless marked paid; an old statement is dormant once the balance sits at
// zero, awaiting the next statement while in credit, and owed otherwise.
// A missing statement date behaves as an infinitely old statement, so a
// never-statemented account lands on the dormancy rules instead of being
// flagged as urgently owing.
func Classify(statementBalance float64, statementIssueDate *time.Time, currentBalance float64, markedPaidAt *time.Time, now time.Time) State {
	if statementBalance == 0 && currentBalance == 0 {
		return Dormant
	}

	if statementIssueDate != nil {
		days := now.Sub(*statementIssueDate).Hours() / 24
		if days < recentStatementDays {
			if currentBalance > 0 && markedPaidAt == nil {
				return StatementGenerated
			}
			return PaymentScheduled
		}
	}

	// Statement is old or was never issued.
	switch {
	case currentBalance < 0:
		// A credit balance means funds are present: explicitly not dormant.
		return PaidAwaitingStatement
	case currentBalance == 0:
		return Dormant
	case markedPaidAt != nil:
		return PaymentScheduled
	default:
		return StatementGenerated
	}
}
