package main

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/vcgauction/auctionapi"
	"github.com/cloudx-io/vcgauction/sealing"
)

// startTestServer runs Start on a loopback listener and returns its address
func startTestServer(t *testing.T) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)

	server := NewAuctioneerServer(Config{
		MaxWorkers:   4,
		Transport:    TransportTCP,
		MaxBids:      20,
		ReadTimeout:  5 * time.Second,
		SolveTimeout: 10 * time.Second,
	})
	server.listen = func() (net.Listener, error) { return listener, nil }
	server.newAttester = func() (Attester, error) { return CreateMockAttester(t), nil }

	done := make(chan error, 1)
	go func() { done <- server.Start() }()

	t.Cleanup(func() {
		_ = listener.Close()
		select {
		case err := <-done:
			check.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Errorf("server did not stop after listener close")
		}
	})
	return listener.Addr().String()
}

// roundTrip sends one request, half-closes the connection and decodes the reply
func roundTrip(t *testing.T, addr string, request any, response any) {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	assert.NoError(t, err)
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	assert.NoError(t, json.NewEncoder(conn).Encode(request))
	assert.NoError(t, conn.(*net.TCPConn).CloseWrite())
	assert.NoError(t, json.NewDecoder(conn).Decode(response))
}

func TestServer_Ping(t *testing.T) {
	addr := startTestServer(t)

	var resp map[string]any
	roundTrip(t, addr, map[string]string{"type": auctionapi.TypePing}, &resp)

	check.Equal(t, any(auctionapi.TypePong), resp["type"])
}

func TestServer_UnknownType(t *testing.T) {
	addr := startTestServer(t)

	var resp map[string]any
	roundTrip(t, addr, map[string]string{"type": "auction_request"}, &resp)

	check.Equal(t, any(auctionapi.TypeError), resp["type"])
	check.Equal(t, any("Unknown request type: auction_request"), resp["message"])
}

func TestServer_KeyRequestThenSealedAuction(t *testing.T) {
	addr := startTestServer(t)

	var keyResp auctionapi.KeyResponse
	roundTrip(t, addr, map[string]string{"type": auctionapi.TypeKeyRequest}, &keyResp)
	assert.Equal(t, auctionapi.TypeKeyResponse, keyResp.Type)

	publicKey, err := sealing.ParsePublicKeyPEM([]byte(keyResp.PublicKey))
	assert.NoError(t, err)
	encrypted, err := sealing.SealBidValue(11, publicKey, sealing.HashAlgorithmSHA256)
	assert.NoError(t, err)

	req := workedRequest()
	req.Bidders[4].Bids = []auctionapi.BundleBid{{Items: []string{"A", "B"}, EncryptedValue: encrypted}}

	var resp auctionapi.VCGResponse
	roundTrip(t, addr, req, &resp)

	assert.True(t, resp.Success)
	check.Equal(t, 31.0, resp.Welfare)
	check.Equal(t, 10.0, awardsByBidder(resp)["e"].Payment)
	check.Equal(t, resp.RunID, parseResponseAttestation(t, resp).UserData.RunID)
}

func TestServer_RejectsInvalidRequest(t *testing.T) {
	addr := startTestServer(t)

	var resp map[string]any
	roundTrip(t, addr, map[string]any{"type": auctionapi.TypeVCGRequest, "bidders": []any{}}, &resp)

	check.Equal(t, any(auctionapi.TypeError), resp["type"])
}
