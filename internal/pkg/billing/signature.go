package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureTolerance bounds replay-after-capture attacks independently of
// event-id deduplication.
const SignatureTolerance = 300 * time.Second

var (
	ErrMissingSignature   = errors.New("missing signature header")
	ErrMalformedSignature = errors.New("malformed signature header")
	ErrStaleSignature     = errors.New("stale signature timestamp")
	ErrInvalidSignature   = errors.New("invalid signature")
)

// VerifySignature validates a timestamped HMAC signature header of the form
// "t=<unix>,v1=<hex>[,v1=<hex>...]" against the raw request body.
//
// An empty secret disables verification entirely. That is a deliberate escape
// hatch for local and dev operation, not an oversight.
func VerifySignature(rawBody []byte, signatureHeader, secret string, now time.Time) error {
	if strings.TrimSpace(secret) == "" {
		return nil
	}
	if strings.TrimSpace(signatureHeader) == "" {
		return ErrMissingSignature
	}

	var timestamps, candidates []string
	for _, item := range strings.Split(signatureHeader, ",") {
		k, v, ok := strings.Cut(item, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(k) {
		case "t":
			timestamps = append(timestamps, strings.TrimSpace(v))
		case "v1":
			candidates = append(candidates, strings.TrimSpace(v))
		}
	}
	if len(timestamps) == 0 || len(candidates) == 0 {
		return ErrMalformedSignature
	}

	ts, err := strconv.ParseInt(timestamps[0], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrMalformedSignature)
	}

	age := now.Unix() - ts
	if age < 0 {
		age = -age
	}
	if time.Duration(age)*time.Second > SignatureTolerance {
		return ErrStaleSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, cand := range candidates {
		if hmac.Equal([]byte(expected), []byte(cand)) {
			return nil
		}
	}
	return ErrInvalidSignature
}
