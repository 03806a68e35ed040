package auctionapi

import (
	"strings"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestValidateRequestJSON_Valid(t *testing.T) {
	raw := `{
	  "type": "vcg_request",
	  "auction_id": "auc-1",
	  "bidders": [
	    {"bidder": "a", "bids": [{"items": ["A", "B"], "value": 3}]},
	    {"bidder": "b", "bids": [{"items": ["A"], "encrypted_value": {"aes_key_encrypted": "k", "encrypted_payload": "p", "nonce": "n", "hash_algorithm": "SHA-1"}}]}
	  ],
	  "adjustment_factors": {"a": 0.9},
	  "item_reserves": {"A": 1.5},
	  "tie_break": "first",
	  "timestamp": "2025-01-01T00:00:00Z"
	}`

	check.Nil(t, ValidateRequestJSON([]byte(raw)))
}

func TestValidateRequestJSON_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{"type":`},
		{"wrong type", `{"type":"auction_request","auction_id":"x","bidders":[]}`},
		{"missing auction id", `{"type":"vcg_request","bidders":[]}`},
		{"empty bundle", `{"type":"vcg_request","auction_id":"x","bidders":[{"bidder":"a","bids":[{"items":[],"value":1}]}]}`},
		{"negative value", `{"type":"vcg_request","auction_id":"x","bidders":[{"bidder":"a","bids":[{"items":["A"],"value":-1}]}]}`},
		{"negative reserve", `{"type":"vcg_request","auction_id":"x","bidders":[],"item_reserves":{"A":-2}}`},
		{"unknown tie break", `{"type":"vcg_request","auction_id":"x","bidders":[],"tie_break":"random"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequestJSON([]byte(tt.raw))
			assert.NotNil(t, err)
			check.True(t, strings.Contains(err.Error(), "request"))
		})
	}
}
