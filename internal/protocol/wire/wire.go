package wire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"sigilo/internal/domain"
)

// Version is the current envelope format version.
const Version = 1

// Envelope kinds.
const (
	KindMessage       = 0x01
	KindPreKeyMessage = 0x02
)

// ErrMalformedEnvelope is returned for any envelope that cannot be decoded:
// truncated prefix, unknown version or kind, undersized fields, or a body
// that is not valid CBOR.
var ErrMalformedEnvelope = errors.New("wire: malformed envelope")

// Message is one ratchet-encrypted message.
type Message struct {
	RatchetKey      domain.X25519Public
	Counter         uint32
	PreviousCounter uint32
	Ciphertext      []byte
}

// PreKeyMessage wraps a Message together with the handshake material the
// receiver needs to establish the session it belongs to.
type PreKeyMessage struct {
	RegistrationID uint32
	IdentityKey    domain.X25519Public
	BaseKey        domain.X25519Public
	PreKeyID       *domain.PreKeyID
	SignedPreKeyID domain.SignedPreKeyID
	Message        []byte
}

type messageBody struct {
	RatchetKey      []byte `cbor:"rk"`
	Counter         uint32 `cbor:"n"`
	PreviousCounter uint32 `cbor:"pn"`
	Ciphertext      []byte `cbor:"ct"`
}

type preKeyMessageBody struct {
	RegistrationID uint32  `cbor:"reg"`
	IdentityKey    []byte  `cbor:"ik"`
	BaseKey        []byte  `cbor:"base"`
	PreKeyID       *uint32 `cbor:"pk,omitempty"`
	SignedPreKeyID uint32  `cbor:"spk"`
	Message        []byte  `cbor:"msg"`
}

// Kind reports the envelope kind of an encoded envelope.
func Kind(data []byte) (byte, error) {
	if len(data) < 2 {
		return 0, fmt.Errorf("%w: truncated prefix", ErrMalformedEnvelope)
	}
	if data[0] != Version {
		return 0, fmt.Errorf("%w: unsupported version %d", ErrMalformedEnvelope, data[0])
	}
	switch data[1] {
	case KindMessage, KindPreKeyMessage:
		return data[1], nil
	default:
		return 0, fmt.Errorf("%w: unknown kind 0x%02x", ErrMalformedEnvelope, data[1])
	}
}

// Encode serializes the message under the current format version.
func (m *Message) Encode() ([]byte, error) {
	body, err := cbor.Marshal(&messageBody{
		RatchetKey:      m.RatchetKey.Slice(),
		Counter:         m.Counter,
		PreviousCounter: m.PreviousCounter,
		Ciphertext:      m.Ciphertext,
	})
	if err != nil {
		return nil, err
	}
	return append([]byte{Version, KindMessage}, body...), nil
}

// DecodeMessage parses and validates an encoded Message envelope.
func DecodeMessage(data []byte) (*Message, error) {
	body, err := envelopeBody(data, KindMessage)
	if err != nil {
		return nil, err
	}
	var mb messageBody
	if err := cbor.Unmarshal(body, &mb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	m := &Message{
		Counter:         mb.Counter,
		PreviousCounter: mb.PreviousCounter,
		Ciphertext:      mb.Ciphertext,
	}
	if err := copyKey(&m.RatchetKey, mb.RatchetKey, "ratchet key"); err != nil {
		return nil, err
	}
	if len(mb.Ciphertext) == 0 {
		return nil, fmt.Errorf("%w: empty ciphertext", ErrMalformedEnvelope)
	}
	return m, nil
}

// Encode serializes the handshake envelope under the current format version.
func (p *PreKeyMessage) Encode() ([]byte, error) {
	body := preKeyMessageBody{
		RegistrationID: p.RegistrationID,
		IdentityKey:    p.IdentityKey.Slice(),
		BaseKey:        p.BaseKey.Slice(),
		SignedPreKeyID: uint32(p.SignedPreKeyID),
		Message:        p.Message,
	}
	if p.PreKeyID != nil {
		id := uint32(*p.PreKeyID)
		body.PreKeyID = &id
	}
	raw, err := cbor.Marshal(&body)
	if err != nil {
		return nil, err
	}
	return append([]byte{Version, KindPreKeyMessage}, raw...), nil
}

// DecodePreKeyMessage parses and validates an encoded PreKeyMessage
// envelope. The inner Message is validated as well.
func DecodePreKeyMessage(data []byte) (*PreKeyMessage, error) {
	body, err := envelopeBody(data, KindPreKeyMessage)
	if err != nil {
		return nil, err
	}
	var pb preKeyMessageBody
	if err := cbor.Unmarshal(body, &pb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	p := &PreKeyMessage{
		RegistrationID: pb.RegistrationID,
		SignedPreKeyID: domain.SignedPreKeyID(pb.SignedPreKeyID),
		Message:        pb.Message,
	}
	if pb.PreKeyID != nil {
		id := domain.PreKeyID(*pb.PreKeyID)
		p.PreKeyID = &id
	}
	if err := copyKey(&p.IdentityKey, pb.IdentityKey, "identity key"); err != nil {
		return nil, err
	}
	if err := copyKey(&p.BaseKey, pb.BaseKey, "base key"); err != nil {
		return nil, err
	}
	if _, err := DecodeMessage(pb.Message); err != nil {
		return nil, err
	}
	return p, nil
}

func envelopeBody(data []byte, kind byte) ([]byte, error) {
	got, err := Kind(data)
	if err != nil {
		return nil, err
	}
	if got != kind {
		return nil, fmt.Errorf("%w: unexpected kind 0x%02x", ErrMalformedEnvelope, got)
	}
	return data[2:], nil
}

func copyKey(dst *domain.X25519Public, src []byte, what string) error {
	if len(src) != len(dst) {
		return fmt.Errorf("%w: %s length %d", ErrMalformedEnvelope, what, len(src))
	}
	copy(dst[:], src)
	return nil
}
