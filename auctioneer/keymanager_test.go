package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/vcgauction/auctionapi"
	"github.com/cloudx-io/vcgauction/sealing"
)

func TestNewKeyManager(t *testing.T) {
	km, err := NewKeyManager()
	assert.NoError(t, err)
	assert.NotNil(t, km.privateKey)
	assert.NotNil(t, km.PublicKey)
}

func TestKeyManager_PublicKeyPEM(t *testing.T) {
	km, err := NewKeyManager()
	assert.NoError(t, err)

	pemStr, err := km.PublicKeyPEM()
	assert.NoError(t, err)
	check.True(t, strings.HasPrefix(pemStr, "-----BEGIN PUBLIC KEY-----"))

	parsed, err := sealing.ParsePublicKeyPEM([]byte(pemStr))
	assert.NoError(t, err)
	check.True(t, parsed.Equal(km.PublicKey))

	other, err := NewKeyManager()
	assert.NoError(t, err)
	otherPEM, err := other.PublicKeyPEM()
	assert.NoError(t, err)
	check.NotEqual(t, pemStr, otherPEM)
}

func TestKeyManager_OpenBidValue(t *testing.T) {
	km, err := NewKeyManager()
	assert.NoError(t, err)

	encrypted, err := sealing.SealBidValue(4.25, km.PublicKey, sealing.HashAlgorithmSHA256)
	assert.NoError(t, err)

	value, err := km.OpenBidValue(encrypted)
	assert.NoError(t, err)
	check.Equal(t, 4.25, value)
}

func TestHandleKeyRequest(t *testing.T) {
	km, err := NewKeyManager()
	assert.NoError(t, err)

	resp, err := HandleKeyRequest(CreateMockAttester(t), km)
	assert.NoError(t, err)
	check.Equal(t, auctionapi.TypeKeyResponse, resp.Type)

	coseBytes, err := resp.AttestationCOSEBase64.Decode()
	assert.NoError(t, err)
	_, userDataBytes, err := coseBytes.ParseAttestationDoc()
	assert.NoError(t, err)

	var userData auctionapi.KeyAttestationUserData
	assert.NoError(t, json.Unmarshal(userDataBytes, &userData))
	check.Equal(t, "RSA-2048", userData.KeyAlgorithm)
	check.Equal(t, resp.PublicKey, userData.PublicKey)

	_, err = HandleKeyRequest(failingAttester(), km)
	check.Error(t, err)
}
