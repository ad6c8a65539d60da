package credential

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// RegisterRequest is the first message of the register handshake, sent by the relay that wants to
// authenticate.
type RegisterRequest struct {
	RelayID   RelayID      `json:"relay_id"`
	PublicKey PublicKey    `json:"public_key"`
	Version   RelayVersion `json:"version"`
}

// RegisterChallenge is the upstream's answer to a RegisterRequest. The token must be echoed back
// in a RegisterResponse signed with the relay's secret key.
type RegisterChallenge struct {
	RelayID RelayID `json:"relay_id"`
	Token   string  `json:"token"`
}

// RegisterResponse is the last message of the register handshake.
type RegisterResponse struct {
	RelayID RelayID      `json:"relay_id"`
	Token   string       `json:"token"`
	Version RelayVersion `json:"version"`
}

// RegisterState is the information the upstream keeps about a pending registration. It is not
// stored anywhere: it is signed and handed to the relay as the challenge token.
type RegisterState struct {
	Timestamp time.Time `json:"t"`
	RelayID   RelayID   `json:"relay_id"`
	PublicKey PublicKey `json:"public_key"`
}

// SignedRegisterState is a RegisterState signed with the upstream's secret key. Its string form
// is "<base64 state>:<signature>".
type SignedRegisterState string

// NewRegisterRequest creates a request for the given relay ID and public key.
func NewRegisterRequest(relayID RelayID, publicKey PublicKey) RegisterRequest {
	return RegisterRequest{RelayID: relayID, PublicKey: publicKey, Version: CurrentRelayVersion()}
}

// CreateResponse answers a challenge.
func (c RegisterChallenge) CreateResponse() RegisterResponse {
	return RegisterResponse{RelayID: c.RelayID, Token: c.Token, Version: CurrentRelayVersion()}
}

// SignRegisterState signs a state with the upstream's secret key, dated at the state's timestamp.
func SignRegisterState(state RegisterState, secret SecretKey) (SignedRegisterState, error) {
	data, sig, err := secret.PackAt(state, state.Timestamp)
	if err != nil {
		return "", err
	}
	return SignedRegisterState(base64.RawURLEncoding.EncodeToString(data) + ":" + sig), nil
}

// Unpack verifies the token with the upstream's secret key and returns the contained state. The
// token's age is measured at now.
func (s SignedRegisterState) Unpack(secret SecretKey, maxAge time.Duration, now time.Time) (RegisterState, error) {
	var state RegisterState
	encoded, sig, found := strings.Cut(string(s), ":")
	if !found {
		return state, UnpackBadEncoding
	}
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return state, UnpackBadEncoding
	}
	if err := secret.PublicKey().UnpackAt(data, sig, maxAge, now, &state); err != nil {
		return state, err
	}
	return state, nil
}

// CreateRegisterChallenge is run by an upstream when a relay posts a RegisterRequest. It verifies
// that the request was signed by the public key it contains, and returns a challenge whose token
// is signed with the upstream's own secret key. Signature ages are measured at now.
func CreateRegisterChallenge(
	data []byte,
	signature string,
	secret SecretKey,
	maxAge time.Duration,
	now time.Time,
) (RegisterChallenge, error) {
	var unverified RegisterRequest
	if err := json.Unmarshal(data, &unverified); err != nil {
		return RegisterChallenge{}, UnpackBadPayload
	}
	if !unverified.PublicKey.Defined() {
		return RegisterChallenge{}, errNoPublicKey
	}
	var req RegisterRequest
	if err := unverified.PublicKey.UnpackAt(data, signature, maxAge, now, &req); err != nil {
		return RegisterChallenge{}, err
	}
	token, err := SignRegisterState(RegisterState{
		Timestamp: now.UTC(),
		RelayID:   req.RelayID,
		PublicKey: req.PublicKey,
	}, secret)
	if err != nil {
		return RegisterChallenge{}, err
	}
	return RegisterChallenge{RelayID: req.RelayID, Token: string(token)}, nil
}

// ValidateRegisterResponse is run by an upstream when a relay posts a RegisterResponse. It returns
// the response and the verified state, from which the caller learns the relay's public key.
// Signature ages are measured at now.
func ValidateRegisterResponse(
	data []byte,
	signature string,
	secret SecretKey,
	maxAge time.Duration,
	now time.Time,
) (RegisterResponse, RegisterState, error) {
	var unverified RegisterResponse
	if err := json.Unmarshal(data, &unverified); err != nil {
		return RegisterResponse{}, RegisterState{}, UnpackBadPayload
	}
	state, err := SignedRegisterState(unverified.Token).Unpack(secret, maxAge, now)
	if err != nil {
		return RegisterResponse{}, RegisterState{}, err
	}
	var resp RegisterResponse
	if err := state.PublicKey.UnpackAt(data, signature, maxAge, now, &resp); err != nil {
		return RegisterResponse{}, RegisterState{}, err
	}
	if resp.RelayID != state.RelayID {
		return RegisterResponse{}, RegisterState{}, errRelayIDMismatch
	}
	return resp, state, nil
}
