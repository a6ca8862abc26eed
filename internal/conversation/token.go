package conversation

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrMalformedToken = errors.New("malformed action token")

// Kind is the action a button triggers.
type Kind byte

const (
	KindConfirm Kind = iota + 1
	KindCancel
	KindNotesYes
	KindNotesNo
)

func (k Kind) String() string {
	switch k {
	case KindConfirm:
		return "confirm"
	case KindCancel:
		return "cancel"
	case KindNotesYes:
		return "notes_yes"
	case KindNotesNo:
		return "notes_no"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

func (k Kind) valid() bool {
	return k >= KindConfirm && k <= KindNotesNo
}

// Token is the payload carried in an inline button. OperatorID is the only
// user allowed to act on it.
type Token struct {
	Kind       Kind
	OperatorID int64
	DraftID    int64
}

// AuthorizedFor reports whether operatorID may act on the token.
func (t Token) AuthorizedFor(operatorID int64) bool {
	return t.OperatorID == operatorID
}

const (
	payloadLen = 1 + 8 + 8
	macLen     = 8
)

// Codec serializes tokens as base64url(kind | operator | draft | mac).
// The encoded form is 34 characters, well inside Telegram's 64-byte callback limit.
type Codec struct {
	key []byte
}

func NewCodec(secret string) *Codec {
	sum := sha256.Sum256([]byte("afterlife-publisher/token/" + secret))
	return &Codec{key: sum[:]}
}

func (c *Codec) Encode(t Token) string {
	buf := make([]byte, payloadLen, payloadLen+macLen)
	buf[0] = byte(t.Kind)
	binary.BigEndian.PutUint64(buf[1:9], uint64(t.OperatorID))
	binary.BigEndian.PutUint64(buf[9:17], uint64(t.DraftID))
	buf = append(buf, c.mac(buf)...)
	return base64.RawURLEncoding.EncodeToString(buf)
}

func (c *Codec) Decode(s string) (Token, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if len(raw) != payloadLen+macLen {
		return Token{}, fmt.Errorf("%w: length %d", ErrMalformedToken, len(raw))
	}

	payload, sig := raw[:payloadLen], raw[payloadLen:]
	if !hmac.Equal(sig, c.mac(payload)) {
		return Token{}, fmt.Errorf("%w: bad signature", ErrMalformedToken)
	}

	t := Token{
		Kind:       Kind(payload[0]),
		OperatorID: int64(binary.BigEndian.Uint64(payload[1:9])),
		DraftID:    int64(binary.BigEndian.Uint64(payload[9:17])),
	}
	if !t.Kind.valid() {
		return Token{}, fmt.Errorf("%w: unknown kind %d", ErrMalformedToken, payload[0])
	}
	return t, nil
}

func (c *Codec) mac(payload []byte) []byte {
	h := hmac.New(sha256.New, c.key)
	h.Write(payload)
	return h.Sum(nil)[:macLen]
}
