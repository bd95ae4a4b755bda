package connectors

import "voterroll/internal"

// MailConnector pulls roster-bearing messages from a mailbox.
type MailConnector interface {
	FetchInbox(label string, max int) ([]internal.FetchedRosterMessage, error)
}
