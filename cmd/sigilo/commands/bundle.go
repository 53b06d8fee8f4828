package commands

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sigilo/internal/domain"
)

// bundleJSON is the portable form of a prekey bundle, for out-of-band
// exchange between operators. Key material is hex encoded.
type bundleJSON struct {
	Name           string `json:"name"`
	DeviceID       uint32 `json:"device_id"`
	RegistrationID uint32 `json:"registration_id"`

	IdentityKey string `json:"identity_key"`
	SigningKey  string `json:"signing_key"`

	SignedPreKeyID        uint32 `json:"signed_prekey_id"`
	SignedPreKey          string `json:"signed_prekey"`
	SignedPreKeySignature string `json:"signed_prekey_signature"`

	PreKeyID *uint32 `json:"prekey_id,omitempty"`
	PreKey   string  `json:"prekey,omitempty"`

	Capabilities uint32 `json:"capabilities"`
}

func bundleToJSON(b domain.PreKeyBundle) bundleJSON {
	out := bundleJSON{
		Name:           b.Name,
		DeviceID:       b.DeviceID,
		RegistrationID: b.RegistrationID,

		IdentityKey: hex.EncodeToString(b.IdentityKey.Slice()),
		SigningKey:  hex.EncodeToString(b.SigningKey.Slice()),

		SignedPreKeyID:        uint32(b.SignedPreKeyID),
		SignedPreKey:          hex.EncodeToString(b.SignedPreKey.Slice()),
		SignedPreKeySignature: hex.EncodeToString(b.SignedPreKeySignature),

		Capabilities: uint32(b.Capabilities),
	}
	if b.PreKeyID != nil {
		id := uint32(*b.PreKeyID)
		out.PreKeyID = &id
		out.PreKey = hex.EncodeToString(b.PreKey.Slice())
	}
	return out
}

func bundleFromJSON(in bundleJSON) (domain.PreKeyBundle, error) {
	b := domain.PreKeyBundle{
		Name:           in.Name,
		DeviceID:       in.DeviceID,
		RegistrationID: in.RegistrationID,
		SignedPreKeyID: domain.SignedPreKeyID(in.SignedPreKeyID),
		Capabilities:   domain.Capability(in.Capabilities),
	}
	if err := decodeKey32((*[32]byte)(&b.IdentityKey), in.IdentityKey, "identity_key"); err != nil {
		return b, err
	}
	if err := decodeKey32((*[32]byte)(&b.SigningKey), in.SigningKey, "signing_key"); err != nil {
		return b, err
	}
	if err := decodeKey32((*[32]byte)(&b.SignedPreKey), in.SignedPreKey, "signed_prekey"); err != nil {
		return b, err
	}
	sig, err := hex.DecodeString(in.SignedPreKeySignature)
	if err != nil {
		return b, fmt.Errorf("bundle: bad signed_prekey_signature: %w", err)
	}
	b.SignedPreKeySignature = sig

	if in.PreKeyID != nil {
		id := domain.PreKeyID(*in.PreKeyID)
		var pk domain.X25519Public
		if err := decodeKey32((*[32]byte)(&pk), in.PreKey, "prekey"); err != nil {
			return b, err
		}
		b.PreKeyID = &id
		b.PreKey = &pk
	}
	return b, nil
}

func decodeKey32(dst *[32]byte, src, what string) error {
	raw, err := hex.DecodeString(src)
	if err != nil || len(raw) != 32 {
		return fmt.Errorf("bundle: bad %s", what)
	}
	copy(dst[:], raw)
	return nil
}

func bundleCmd() *cobra.Command {
	var name string
	var deviceID uint32
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Export the public prekey bundle as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := appCtx.PreKeys.Bundle(name, deviceID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(bundleToJSON(b))
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name peers address this device by")
	cmd.Flags().Uint32Var(&deviceID, "device", 1, "device id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
