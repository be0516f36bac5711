package auth

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod     = 30
	totpSecretSize = 20
	qrSize         = 200
)

// Enrollment is what a principal needs to register a second factor with an
// authenticator app.
type Enrollment struct {
	Secret    string
	URI       string
	QRDataURL string
}

// SecondFactor generates and checks time-based one-time codes.
type SecondFactor interface {
	Enroll(accountName string) (*Enrollment, error)
	Verify(secret, code string, at time.Time) bool
}

// DefaultSkew is the number of periods either side of the current one
// whose codes are still accepted.
const DefaultSkew = 2

// TOTP is a SecondFactor with six digits, SHA1 and a 30 second period.
type TOTP struct {
	issuer string
	skew   uint
}

func NewTOTP(issuer string, skew uint) *TOTP {
	return &TOTP{issuer: issuer, skew: skew}
}

func (t *TOTP) opts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      t.skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

func (t *TOTP) Enroll(accountName string) (*Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.issuer,
		AccountName: accountName,
		Period:      totpPeriod,
		SecretSize:  totpSecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}

	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	return &Enrollment{
		Secret:    key.Secret(),
		URI:       key.URL(),
		QRDataURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

func (t *TOTP) Verify(secret, code string, at time.Time) bool {
	if secret == "" || code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, at, t.opts())
	return err == nil && ok
}
