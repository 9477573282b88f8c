/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package messagepickup

import (
	"time"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/decorator"
)

// StatusRequest sent by the recipient to the message holder to request a status message.
// https://github.com/hyperledger/aries-rfcs/tree/main/features/0685-pickup-v2#status-request
type StatusRequest struct {
	Type         string            `json:"@type,omitempty"`
	ID           string            `json:"@id,omitempty"`
	RecipientKey string            `json:"recipient_key,omitempty"`
	Thread       *decorator.Thread `json:"~thread,omitempty"`
}

// Status details about pending messages.
// https://github.com/hyperledger/aries-rfcs/tree/main/features/0685-pickup-v2#status
type Status struct {
	Type                 string            `json:"@type,omitempty"`
	ID                   string            `json:"@id,omitempty"`
	RecipientKey         string            `json:"recipient_key,omitempty"`
	MessageCount         int               `json:"message_count"`
	LongestWaitedSeconds int64             `json:"longest_waited_seconds,omitempty"`
	NewestReceivedTime   *time.Time        `json:"newest_received_time,omitempty"`
	OldestReceivedTime   *time.Time        `json:"oldest_received_time,omitempty"`
	TotalBytes           int               `json:"total_bytes,omitempty"`
	LiveDelivery         bool              `json:"live_delivery"`
	Thread               *decorator.Thread `json:"~thread,omitempty"`
}

// DeliveryRequest asks for up to Limit queued messages.
// https://github.com/hyperledger/aries-rfcs/tree/main/features/0685-pickup-v2#delivery-request
type DeliveryRequest struct {
	Type         string            `json:"@type,omitempty"`
	ID           string            `json:"@id,omitempty"`
	Limit        int               `json:"limit"`
	RecipientKey string            `json:"recipient_key,omitempty"`
	Thread       *decorator.Thread `json:"~thread,omitempty"`
}

// Delivery carries queued messages as attachments, the attachment id is the
// message id to acknowledge.
// https://github.com/hyperledger/aries-rfcs/tree/main/features/0685-pickup-v2#message-delivery
type Delivery struct {
	Type         string                 `json:"@type,omitempty"`
	ID           string                 `json:"@id,omitempty"`
	RecipientKey string                 `json:"recipient_key,omitempty"`
	Attachments  []decorator.Attachment `json:"~attach"`
	Thread       *decorator.Thread      `json:"~thread,omitempty"`
}

// MessagesReceived acknowledges delivered messages so the holder drops them.
// https://github.com/hyperledger/aries-rfcs/tree/main/features/0685-pickup-v2#messages-received
type MessagesReceived struct {
	Type          string            `json:"@type,omitempty"`
	ID            string            `json:"@id,omitempty"`
	MessageIDList []string          `json:"message_id_list"`
	Thread        *decorator.Thread `json:"~thread,omitempty"`
}

// LiveDeliveryChange toggles pushing messages as they arrive.
// https://github.com/hyperledger/aries-rfcs/tree/main/features/0685-pickup-v2#live-mode
type LiveDeliveryChange struct {
	Type         string            `json:"@type,omitempty"`
	ID           string            `json:"@id,omitempty"`
	LiveDelivery bool              `json:"live_delivery"`
	Thread       *decorator.Thread `json:"~thread,omitempty"`
}
