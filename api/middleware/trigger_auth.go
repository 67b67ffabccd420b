package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pipeflowhq/pipeflow-backend/api/responses"
	"github.com/pipeflowhq/pipeflow-backend/pkg/config"
	pkgerrors "github.com/pipeflowhq/pipeflow-backend/pkg/errors"
	"github.com/pipeflowhq/pipeflow-backend/pkg/logger"
)

const (
	triggerSignatureHeader = "X-Pipeflow-Signature"
	maxTriggerBodyBytes    = 1 << 16
)

// TriggerAuth guards the internal job-trigger endpoints. POST requests carry
// an HMAC signature over a timestamped body; GET requests carry the shared
// bearer secret. Both comparisons are constant-time.
func TriggerAuth(cfg config.JobsConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				if err := checkTriggerBearer(r, cfg.TriggerSecret); err != nil {
					responses.WriteError(r.Context(), logg, w, err)
					return
				}
			default:
				body, err := io.ReadAll(io.LimitReader(r.Body, maxTriggerBodyBytes))
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				if err := checkTriggerSignature(r.Header.Get(triggerSignatureHeader), body, cfg.SigningSecret, cfg.SignatureTolerance, time.Now()); err != nil {
					responses.WriteError(r.Context(), logg, w, err)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func checkTriggerBearer(r *http.Request, secret string) error {
	if secret == "" {
		return pkgerrors.New(pkgerrors.CodeInternal, "trigger secret not configured")
	}
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	token := raw
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid trigger credentials")
	}
	return nil
}

// checkTriggerSignature verifies a "t=<unix>,v1=<hex>" header where the
// signed message is "<t>.<body>". Rejects timestamps outside the tolerance
// window to blunt replay.
func checkTriggerSignature(header string, body []byte, secret string, tolerance time.Duration, now time.Time) error {
	if secret == "" {
		return pkgerrors.New(pkgerrors.CodeInternal, "signing secret not configured")
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing signature")
	}

	var timestamp int64
	var signature string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			parsed, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return pkgerrors.New(pkgerrors.CodeUnauthorized, "malformed signature timestamp")
			}
			timestamp = parsed
		case "v1":
			signature = kv[1]
		}
	}
	if timestamp == 0 || signature == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "malformed signature header")
	}

	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	issued := time.Unix(timestamp, 0)
	if now.Sub(issued) > tolerance || issued.Sub(now) > tolerance {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "signature timestamp outside tolerance")
	}

	expected := ComputeTriggerSignature(secret, timestamp, body)
	if subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) != 1 {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "signature mismatch")
	}
	return nil
}

// ComputeTriggerSignature produces the hex HMAC-SHA256 for a trigger call.
// Exposed so callers and tests can mint valid headers.
func ComputeTriggerSignature(secret string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
