/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package decorator

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
)

func TestAttachmentData_Fetch(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		expected := map[string]interface{}{
			"FirstName": "John",
			"LastName":  "Doe",
		}
		bits, err := (&AttachmentData{JSON: expected}).Fetch()
		require.NoError(t, err)
		result := make(map[string]interface{})
		err = json.Unmarshal(bits, &result)
		require.NoError(t, err)
		require.Equal(t, expected, result)
	})
	t.Run("base64", func(t *testing.T) {
		expected := &testStruct{
			FirstName: "John",
			LastName:  "Doe",
		}
		tmp, err := json.Marshal(expected)
		require.NoError(t, err)
		encoded := base64.StdEncoding.EncodeToString(tmp)
		bytes, err := (&AttachmentData{Base64: encoded}).Fetch()
		require.NoError(t, err)
		result := &testStruct{}
		err = json.Unmarshal(bytes, result)
		require.NoError(t, err)
		require.Equal(t, expected, result)
	})
	t.Run("invalid json", func(t *testing.T) {
		_, err := (&AttachmentData{JSON: func() {}}).Fetch()
		require.Error(t, err)
	})
	t.Run("invalid base64", func(t *testing.T) {
		_, err := (&AttachmentData{Base64: "invalid"}).Fetch()
		require.Error(t, err)
	})
	t.Run("no contents", func(t *testing.T) {
		_, err := (&AttachmentData{}).Fetch()
		require.Error(t, err)
	})
}

func TestNewBase64Attachment(t *testing.T) {
	a := NewBase64Attachment("libindy-cred-offer-0", "application/json", []byte(`{"nonce":"1"}`))

	got, ok := Find([]Attachment{{ID: "other"}, a}, "libindy-cred-offer-0")
	require.True(t, ok)

	bits, err := got.Data.Fetch()
	require.NoError(t, err)
	require.JSONEq(t, `{"nonce":"1"}`, string(bits))

	_, ok = Find(nil, "x")
	require.False(t, ok)
}

func TestAttachmentJSON(t *testing.T) {
	offer := NewBase64Attachment("offer-0", "application/json", []byte(`{"nonce":"1"}`))
	broken := NewBase64Attachment("broken-0", "", []byte("{"))

	t.Run("by id", func(t *testing.T) {
		raw, err := JSONByID([]Attachment{broken, offer}, "offer-0")
		require.NoError(t, err)
		require.JSONEq(t, `{"nonce":"1"}`, string(raw))

		raw, err = JSONByID([]Attachment{offer}, "other-id")
		require.NoError(t, err)
		require.JSONEq(t, `{"nonce":"1"}`, string(raw))

		_, err = JSONByID([]Attachment{broken, offer}, "other-id")
		require.True(t, errors.Is(err, agenterr.ErrFormatMismatch))

		_, err = JSONByID([]Attachment{broken}, "broken-0")
		require.True(t, errors.Is(err, agenterr.ErrFormatMismatch))
	})

	t.Run("by format", func(t *testing.T) {
		formats := []AttachmentFormat{{AttachID: "broken-0", Format: "x@v1"}, {AttachID: "offer-0", Format: "y@v2"}}

		raw, err := JSONByFormat(formats, []Attachment{broken, offer}, "y@v2")
		require.NoError(t, err)
		require.JSONEq(t, `{"nonce":"1"}`, string(raw))

		_, err = JSONByFormat(formats, []Attachment{broken, offer}, "z@v3")
		require.True(t, errors.Is(err, agenterr.ErrFormatMismatch))

		_, err = JSONByFormat(formats, []Attachment{broken}, "y@v2")
		require.True(t, errors.Is(err, agenterr.ErrFormatMismatch))
	})

	t.Run("empty data", func(t *testing.T) {
		_, err := (&Attachment{ID: "empty"}).JSON()
		require.True(t, errors.Is(err, agenterr.ErrFormatMismatch))
	})
}

func TestTransport_Enabled(t *testing.T) {
	var none *Transport
	require.False(t, none.Enabled())
	require.False(t, (&Transport{ReturnRoute: &ReturnRoute{Value: TransportReturnRouteNone}}).Enabled())
	require.True(t, (&Transport{ReturnRoute: &ReturnRoute{Value: TransportReturnRouteAll}}).Enabled())

	var tr Transport
	require.NoError(t, json.Unmarshal([]byte(`{"~transport":{"return_route":"all"}}`), &tr))
	require.True(t, tr.Enabled())
}

func TestTiming_Expired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)

	var none *Timing
	require.False(t, none.Expired(now))
	require.False(t, (&Timing{}).Expired(now))
	require.True(t, (&Timing{ExpiresTime: &past}).Expired(now))
}

type testStruct struct {
	FirstName string
	LastName  string
}
