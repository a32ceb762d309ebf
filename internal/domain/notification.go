package domain

import (
	"strings"
	"time"
)

// Acknowledgement bodies the gateway parses verbatim
const (
	AckSuccess = "<Roturlstatus>Payment_OK</Roturlstatus>"
	AckFailure = "0"

	// RoturlStatusToken is sent as Roturl_status and echoed inside AckSuccess
	RoturlStatusToken = "Payment_OK"
)

// Notification field names (canonical protocol revision: Od_sob / Smseid)
const (
	FieldClassif     = "Classif"
	FieldReference   = "Od_sob"
	FieldPaymentNo   = "Payment_no"
	FieldAmount      = "Purchamt"
	FieldEchoNonce   = "Smseid"
	FieldVerifyCode  = "Mid_smilepay"
	FieldProcessDate = "Process_date"
	FieldProcessTime = "Process_time"
)

// NotificationOutcome summarises how an inbound notification was handled
type NotificationOutcome string

const (
	OutcomeCompleted        NotificationOutcome = "completed"
	OutcomeAlreadyCompleted NotificationOutcome = "already_completed"
	OutcomeRejected         NotificationOutcome = "rejected"
	OutcomeFailed           NotificationOutcome = "failed"
)

// NotificationLogEntry is the audit record of one inbound callback
type NotificationLogEntry struct {
	ReceivedAt time.Time `json:"received_at"`

	Params map[string]string `json:"params"`

	ID            string              `json:"id"`
	Reference     string              `json:"reference"`
	Classif       string              `json:"classif"`
	Outcome       NotificationOutcome `json:"outcome"`
	RejectionCode ErrorCode           `json:"rejection_code,omitempty"`
	Message       string              `json:"message,omitempty"`
}

// Notification is one inbound gateway callback
type Notification struct {
	ReceivedAt time.Time

	// Params holds the first value of every form field
	Params map[string]string

	// Method is the variant named by the callback URL, empty when unspecified
	Method MethodVariant
}

// NewNotification flattens form values into a Notification
func NewNotification(form map[string][]string, method MethodVariant, receivedAt time.Time) Notification {
	params := make(map[string]string, len(form))
	for k, v := range form {
		if len(v) > 0 {
			params[k] = strings.TrimSpace(v[0])
		}
	}
	return Notification{ReceivedAt: receivedAt, Params: params, Method: method}
}

// Get returns the named field or ""
func (n Notification) Get(field string) string {
	return n.Params[field]
}

// NotificationResult is the outcome of processing a notification. Ack is the
// exact body returned to the gateway.
type NotificationResult struct {
	Err error

	Ack       string
	Outcome   NotificationOutcome
	Reference string
}

// Succeeded reports whether the gateway should be told the payment was accepted
func (r *NotificationResult) Succeeded() bool {
	return r.Ack == AckSuccess
}
