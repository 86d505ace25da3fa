package exotel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExophones_XMLPrimary(t *testing.T) {
	body := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<TwilioResponse>
	<IncomingPhoneNumbers>
		<IncomingPhoneNumber>
			<Sid>PN_1</Sid>
			<PhoneNumber>+919876543210</PhoneNumber>
			<FriendlyName>Support line</FriendlyName>
		</IncomingPhoneNumber>
		<IncomingPhoneNumber>
			<Sid>PN_2</Sid>
			<PhoneNumber>+918888888888</PhoneNumber>
			<FriendlyName>Sales line</FriendlyName>
		</IncomingPhoneNumber>
	</IncomingPhoneNumbers>
</TwilioResponse>`)

	entries, err := parseExophones(body)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "PN_1", entries[0].Sid)
	assert.Equal(t, "+919876543210", entries[0].PhoneNumber)
	assert.Equal(t, "Sales line", entries[1].FriendlyName)
}

func TestParseExophones_JSONFallback(t *testing.T) {
	body := []byte(`{"IncomingPhoneNumbers":[{"Sid":"PN_1","PhoneNumber":"+919876543210","FriendlyName":"Support line"}]}`)

	entries, err := parseExophones(body)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "PN_1", entries[0].Sid)
}

func TestParseExophones_Garbage(t *testing.T) {
	_, err := parseExophones([]byte("not a payload"))
	assert.Error(t, err)
}

func TestParseConnectCall_XMLPrimary(t *testing.T) {
	body := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<TwilioResponse>
	<Call>
		<Sid>EXO_1</Sid>
		<Status>in-progress</Status>
		<Direction>outbound-api</Direction>
	</Call>
</TwilioResponse>`)

	resp, err := parseConnectCall(body)
	require.NoError(t, err)
	assert.Equal(t, "EXO_1", resp.Call.Sid)
	assert.Equal(t, "in-progress", resp.Call.Status)
}

func TestParseConnectCall_JSONFallback(t *testing.T) {
	body := []byte(`{"Call":{"Sid":"EXO_1","Status":"in-progress","Direction":"outbound-api"}}`)

	resp, err := parseConnectCall(body)
	require.NoError(t, err)
	assert.Equal(t, "EXO_1", resp.Call.Sid)
}
